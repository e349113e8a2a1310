// Package mapban implements the turn-based map elimination draft played
// between two team leaders. State is a value: every operation returns a new
// State and leaves the receiver untouched, so the owning lobby can reject a
// command without rolling anything back.
package mapban

import (
	"fmt"
	"slices"
	"time"

	"github.com/edvart/inhouse-queue/internal/errs"
)

type Team string

const (
	TeamA Team = "a"
	TeamB Team = "b"
)

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// Ban is one accepted elimination. Auto marks bans applied on turn timeout.
type Ban struct {
	Team     Team      `json:"team"`
	Map      string    `json:"map"`
	PlayerID string    `json:"playerId,omitempty"`
	At       time.Time `json:"at"`
	Auto     bool      `json:"auto"`
}

type State struct {
	Pool      []string `json:"pool"`
	Available []string `json:"available"`
	Banned    []string `json:"banned"`
	Selected  string   `json:"selected,omitempty"`
	Turn      Team     `json:"turn"`
	History   []Ban    `json:"history"`
	LeaderA   string   `json:"leaderA"`
	LeaderB   string   `json:"leaderB"`
}

// New starts a draft over pool. A single-map pool completes immediately.
func New(pool []string, leaderA, leaderB string, first Team) (State, error) {
	if len(pool) == 0 {
		return State{}, fmt.Errorf("map pool is empty")
	}
	seen := make(map[string]bool, len(pool))
	for _, m := range pool {
		if m == "" {
			return State{}, fmt.Errorf("map pool contains an empty name")
		}
		if seen[m] {
			return State{}, fmt.Errorf("map pool contains %q twice", m)
		}
		seen[m] = true
	}
	if first != TeamA && first != TeamB {
		return State{}, fmt.Errorf("invalid starting team %q", first)
	}

	s := State{
		Pool:      slices.Clone(pool),
		Available: slices.Clone(pool),
		Banned:    []string{},
		Turn:      first,
		History:   []Ban{},
		LeaderA:   leaderA,
		LeaderB:   leaderB,
	}
	if len(s.Available) == 1 {
		s.Selected = s.Available[0]
	}
	return s, nil
}

// Complete reports whether exactly one map remains.
func (s State) Complete() bool {
	return s.Selected != ""
}

// Leader returns the acting leader for team.
func (s State) Leader(team Team) string {
	if team == TeamA {
		return s.LeaderA
	}
	return s.LeaderB
}

// CurrentLeader returns the leader whose turn it is.
func (s State) CurrentLeader() string {
	return s.Leader(s.Turn)
}

// BanCount is the number of accepted bans so far.
func (s State) BanCount() int {
	return len(s.History)
}

// Ban removes mapName on behalf of playerID.
func (s State) Ban(playerID, mapName string, now time.Time) (State, error) {
	if s.Complete() {
		return s, errs.ErrDraftNotActive
	}
	if playerID == "" || playerID != s.CurrentLeader() {
		return s, errs.ErrNotYourTurn
	}
	return s.apply(Ban{Team: s.Turn, Map: mapName, PlayerID: playerID, At: now})
}

// AutoBan bans for the current team without a leader action. preferred is
// used when still available; otherwise the alphabetically first map goes.
func (s State) AutoBan(now time.Time, preferred string) (State, Ban, error) {
	if s.Complete() {
		return s, Ban{}, errs.ErrDraftNotActive
	}

	target := preferred
	if !slices.Contains(s.Available, target) {
		sorted := slices.Clone(s.Available)
		slices.Sort(sorted)
		target = sorted[0]
	}

	ban := Ban{Team: s.Turn, Map: target, At: now, Auto: true}
	next, err := s.apply(ban)
	return next, ban, err
}

func (s State) apply(ban Ban) (State, error) {
	if !slices.Contains(s.Available, ban.Map) {
		if slices.Contains(s.Banned, ban.Map) {
			return s, errs.ErrMapAlreadyBanned
		}
		return s, errs.New(errs.CodeUnknownMap, "map %q is not in the pool", ban.Map)
	}

	next := s.clone()
	next.Available = slices.DeleteFunc(next.Available, func(m string) bool { return m == ban.Map })
	next.Banned = append(next.Banned, ban.Map)
	next.History = append(next.History, ban)
	next.Turn = s.Turn.Other()
	if len(next.Available) == 1 {
		next.Selected = next.Available[0]
	}
	return next, nil
}

// ReplaceLeader hands a team's leadership to playerID.
func (s State) ReplaceLeader(team Team, playerID string) State {
	next := s.clone()
	if team == TeamA {
		next.LeaderA = playerID
	} else {
		next.LeaderB = playerID
	}
	return next
}

// Validate checks the draft invariants.
func (s State) Validate() error {
	for _, m := range s.Banned {
		if slices.Contains(s.Available, m) {
			return fmt.Errorf("map %q is both available and banned", m)
		}
	}
	if len(s.Banned) != len(s.History) {
		return fmt.Errorf("ban history has %d entries for %d banned maps", len(s.History), len(s.Banned))
	}
	if len(s.Available)+len(s.Banned) != len(s.Pool) {
		return fmt.Errorf("draft lost maps: %d available + %d banned != %d pool",
			len(s.Available), len(s.Banned), len(s.Pool))
	}
	if s.Complete() && (len(s.Available) != 1 || s.Available[0] != s.Selected) {
		return fmt.Errorf("selected map %q does not match remaining %v", s.Selected, s.Available)
	}
	return nil
}

func (s State) clone() State {
	s.Pool = slices.Clone(s.Pool)
	s.Available = slices.Clone(s.Available)
	s.Banned = slices.Clone(s.Banned)
	s.History = slices.Clone(s.History)
	return s
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	return s.clone()
}
