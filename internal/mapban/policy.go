package mapban

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"
)

// LeaderPolicy decides which team member drives the draft for their side.
type LeaderPolicy string

const (
	LeaderFirstJoined   LeaderPolicy = "first-joined"
	LeaderHighestRating LeaderPolicy = "highest-rating"
)

// FirstBanPolicy decides which team bans first.
type FirstBanPolicy string

const (
	FirstBanLowerRating FirstBanPolicy = "lower-rating"
	FirstBanCoinFlip    FirstBanPolicy = "coin-flip"
)

// ParseLeaderPolicy returns the policy named s.
func ParseLeaderPolicy(s string) (LeaderPolicy, error) {
	switch p := LeaderPolicy(s); p {
	case LeaderFirstJoined, LeaderHighestRating:
		return p, nil
	}
	return "", fmt.Errorf("unknown leader policy %q", s)
}

// ParseFirstBanPolicy returns the policy named s.
func ParseFirstBanPolicy(s string) (FirstBanPolicy, error) {
	switch p := FirstBanPolicy(s); p {
	case FirstBanLowerRating, FirstBanCoinFlip:
		return p, nil
	}
	return "", fmt.Errorf("unknown first ban policy %q", s)
}

// Candidate is a team member eligible to lead the draft.
type Candidate struct {
	ID       string
	Rating   int
	JoinedAt time.Time
	Bot      bool
}

// SelectLeader picks the leader among candidates. Humans always win over
// bots; the remaining ties resolve to the lowest id. Returns "" when there
// are no candidates.
func SelectLeader(candidates []Candidate, policy LeaderPolicy) string {
	if len(candidates) == 0 {
		return ""
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Bot != b.Bot {
			return !a.Bot
		}
		if policy == LeaderHighestRating && a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	return sorted[0].ID
}

// FirstTeam picks the team that bans first.
func FirstTeam(policy FirstBanPolicy, lobbyID string, avgA, avgB float64) Team {
	if policy == FirstBanCoinFlip {
		h := fnv.New32a()
		h.Write([]byte(lobbyID))
		if h.Sum32()%2 == 0 {
			return TeamA
		}
		return TeamB
	}

	// The weaker side bans first to offset part of the rating gap.
	if avgB < avgA {
		return TeamB
	}
	return TeamA
}
