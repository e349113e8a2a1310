package mapban

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvart/inhouse-queue/internal/errs"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newDraft(t *testing.T, pool ...string) State {
	t.Helper()
	s, err := New(pool, "leaderA", "leaderB", TeamA)
	require.NoError(t, err)
	return s
}

func TestThreeMapDraft(t *testing.T) {
	s := newDraft(t, "A", "B", "C")

	s, err := s.Ban("leaderA", "A", t0)
	require.NoError(t, err)
	assert.Equal(t, TeamB, s.Turn)
	assert.False(t, s.Complete())

	s, err = s.Ban("leaderB", "B", t0.Add(time.Second))
	require.NoError(t, err)

	assert.True(t, s.Complete())
	assert.Equal(t, "C", s.Selected)
	require.Len(t, s.History, 2)
	assert.Equal(t, "A", s.History[0].Map)
	assert.Equal(t, TeamA, s.History[0].Team)
	assert.Equal(t, "B", s.History[1].Map)
	assert.Equal(t, TeamB, s.History[1].Team)
	assert.NoError(t, s.Validate())
}

func TestBanOutOfTurn(t *testing.T) {
	s := newDraft(t, "A", "B", "C", "D")

	s, err := s.Ban("leaderA", "A", t0)
	require.NoError(t, err)

	next, err := s.Ban("leaderA", "B", t0)
	assert.True(t, errors.Is(err, errs.ErrNotYourTurn))
	assert.Equal(t, s, next, "rejected ban must not change state")

	_, err = s.Ban("someone-else", "B", t0)
	assert.True(t, errors.Is(err, errs.ErrNotYourTurn))
}

func TestBanRejections(t *testing.T) {
	s := newDraft(t, "A", "B", "C", "D")
	s, err := s.Ban("leaderA", "A", t0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mapName string
		want    error
	}{
		{"already banned", "A", errs.ErrMapAlreadyBanned},
		{"not in pool", "Z", errs.ErrUnknownMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := s.Ban("leaderB", tt.mapName, t0)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, s.BanCount(), next.BanCount())
			assert.Equal(t, TeamB, next.Turn)
		})
	}
}

func TestBanAfterCompletion(t *testing.T) {
	s := newDraft(t, "A", "B")
	s, err := s.Ban("leaderA", "A", t0)
	require.NoError(t, err)
	require.True(t, s.Complete())

	_, err = s.Ban("leaderB", "B", t0)
	assert.True(t, errors.Is(err, errs.ErrDraftNotActive))

	_, _, err = s.AutoBan(t0, "")
	assert.True(t, errors.Is(err, errs.ErrDraftNotActive))
}

func TestDraftTerminatesAfterPoolMinusOneBans(t *testing.T) {
	for n := 1; n <= 7; n++ {
		pool := make([]string, n)
		for i := range pool {
			pool[i] = string(rune('A' + i))
		}
		s := newDraft(t, pool...)

		bans := 0
		for !s.Complete() {
			var err error
			s, err = s.Ban(s.CurrentLeader(), s.Available[len(s.Available)-1], t0)
			require.NoError(t, err)
			bans++
			require.NoError(t, s.Validate())
		}
		assert.Equal(t, n-1, bans, "pool of %d", n)
		assert.Len(t, s.Available, 1)
	}
}

func TestTurnAlternates(t *testing.T) {
	s := newDraft(t, "A", "B", "C", "D", "E")
	want := []Team{TeamA, TeamB, TeamA, TeamB}
	for i, m := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, want[i], s.Turn)
		var err error
		s, err = s.Ban(s.CurrentLeader(), m, t0)
		require.NoError(t, err)
	}
	assert.Equal(t, "E", s.Selected)
}

func TestAutoBan(t *testing.T) {
	s := newDraft(t, "Nuke", "Anubis", "Mirage")

	s, ban, err := s.AutoBan(t0, "")
	require.NoError(t, err)
	assert.Equal(t, "Anubis", ban.Map, "falls back to alphabetical first")
	assert.True(t, ban.Auto)
	assert.Empty(t, ban.PlayerID)
	assert.Equal(t, TeamA, ban.Team)

	s, ban, err = s.AutoBan(t0, "Nuke")
	require.NoError(t, err)
	assert.Equal(t, "Nuke", ban.Map, "preferred map used while available")
	assert.Equal(t, "Mirage", s.Selected)
	assert.True(t, s.History[0].Auto)
}

func TestNewValidatesPool(t *testing.T) {
	_, err := New(nil, "a", "b", TeamA)
	assert.Error(t, err)

	_, err = New([]string{"A", "A"}, "a", "b", TeamA)
	assert.Error(t, err)

	_, err = New([]string{"A", "B"}, "a", "b", Team("c"))
	assert.Error(t, err)

	s, err := New([]string{"Solo"}, "a", "b", TeamB)
	require.NoError(t, err)
	assert.True(t, s.Complete())
	assert.Equal(t, "Solo", s.Selected)
}

func TestReplaceLeader(t *testing.T) {
	s := newDraft(t, "A", "B", "C")
	replaced := s.ReplaceLeader(TeamA, "p9")

	assert.Equal(t, "leaderA", s.LeaderA, "receiver is untouched")
	assert.Equal(t, "p9", replaced.LeaderA)

	_, err := replaced.Ban("leaderA", "A", t0)
	assert.True(t, errors.Is(err, errs.ErrNotYourTurn))
	_, err = replaced.Ban("p9", "A", t0)
	assert.NoError(t, err)
}

func TestSelectLeader(t *testing.T) {
	candidates := []Candidate{
		{ID: "p3", Rating: 1500, JoinedAt: t0.Add(2 * time.Second)},
		{ID: "p2", Rating: 1100, JoinedAt: t0},
		{ID: "p1", Rating: 1100, JoinedAt: t0},
		{ID: "bot-1", Rating: 2000, JoinedAt: t0.Add(-time.Hour), Bot: true},
	}

	assert.Equal(t, "p1", SelectLeader(candidates, LeaderFirstJoined))
	assert.Equal(t, "p3", SelectLeader(candidates, LeaderHighestRating))
	assert.Equal(t, "bot-1", SelectLeader(candidates[3:], LeaderFirstJoined))
	assert.Empty(t, SelectLeader(nil, LeaderFirstJoined))
}

func TestFirstTeam(t *testing.T) {
	assert.Equal(t, TeamB, FirstTeam(FirstBanLowerRating, "l1", 1200, 1100))
	assert.Equal(t, TeamA, FirstTeam(FirstBanLowerRating, "l1", 1100, 1200))
	assert.Equal(t, TeamA, FirstTeam(FirstBanLowerRating, "l1", 1100, 1100))

	first := FirstTeam(FirstBanCoinFlip, "lobby-42", 0, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FirstTeam(FirstBanCoinFlip, "lobby-42", 0, 0), "coin flip is reproducible")
	}
}

func TestParsePolicies(t *testing.T) {
	lp, err := ParseLeaderPolicy("highest-rating")
	require.NoError(t, err)
	assert.Equal(t, LeaderHighestRating, lp)
	_, err = ParseLeaderPolicy("random")
	assert.Error(t, err)

	fp, err := ParseFirstBanPolicy("coin-flip")
	require.NoError(t, err)
	assert.Equal(t, FirstBanCoinFlip, fp)
	_, err = ParseFirstBanPolicy("")
	assert.Error(t, err)
}
