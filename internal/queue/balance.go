package queue

import "sort"

// SnakeDraft splits entries into two teams: entries are sorted by rating
// (highest first, ties by join time then id) and dealt A, B, B, A, A, B, ...
// Team sizes differ by at most one.
func SnakeDraft(entries []Entry) (teamA, teamB []Entry) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Player.Rating != b.Player.Rating {
			return a.Player.Rating > b.Player.Rating
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.Player.ID < b.Player.ID
	})

	for i, e := range sorted {
		if i%4 == 0 || i%4 == 3 {
			teamA = append(teamA, e)
		} else {
			teamB = append(teamB, e)
		}
	}
	return teamA, teamB
}

// AverageRating returns the mean rating of entries, or 0 when empty.
func AverageRating(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.Player.Rating
	}
	return float64(sum) / float64(len(entries))
}
