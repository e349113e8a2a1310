package matchrecorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/mapban"
	"github.com/edvart/inhouse-queue/internal/store"
)

func setupStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "matches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord() lobby.MatchRecord {
	t0 := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	return lobby.MatchRecord{
		LobbyID: "lobby-1",
		TeamA:   []lobby.Player{{ID: "p1", Name: "Alice"}, {ID: "p3", Name: "Carol"}},
		TeamB:   []lobby.Player{{ID: "p2", Name: "Bob"}, {ID: "bot-1", Name: "Bot 1", Bot: true}},
		LeaderA: "p1",
		LeaderB: "p2",
		Bans: []mapban.Ban{
			{Team: mapban.TeamA, Map: "A", PlayerID: "p1", At: t0.Add(time.Minute)},
			{Team: mapban.TeamB, Map: "B", PlayerID: "p2", At: t0.Add(2 * time.Minute), Auto: true},
		},
		SelectedMap: "C",
		HasBots:     true,
		CreatedAt:   t0,
		CompletedAt: t0.Add(3 * time.Minute),
	}
}

func TestCreateMatchRecord(t *testing.T) {
	s := setupStore(t)
	r := New(s)
	ctx := context.Background()

	id, err := r.CreateMatchRecord(ctx, sampleRecord())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := s.GetMatch(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "lobby-1", m.LobbyID)
	assert.Equal(t, "C", m.SelectedMap)
	assert.True(t, m.HasBots)
	require.Len(t, m.Bans, 2)
	assert.Equal(t, "a", m.Bans[0].Team)
	assert.Equal(t, "B", m.Bans[1].Map)
	assert.True(t, m.Bans[1].Auto)

	players, err := s.GetMatchPlayers(ctx, id)
	require.NoError(t, err)
	require.Len(t, players, 4)
	leaders := map[string]bool{}
	for _, p := range players {
		if p.WasLeader {
			leaders[p.PlayerID] = true
		}
		if p.PlayerID == "bot-1" {
			assert.True(t, p.IsBot)
			assert.Equal(t, "b", p.Team)
		}
	}
	assert.Equal(t, map[string]bool{"p1": true, "p2": true}, leaders)
}

func TestCreateMatchRecordDuplicate(t *testing.T) {
	s := setupStore(t)
	r := New(s)
	ctx := context.Background()

	first, err := r.CreateMatchRecord(ctx, sampleRecord())
	require.NoError(t, err)

	second, err := r.CreateMatchRecord(ctx, sampleRecord())
	assert.True(t, errors.Is(err, errs.ErrDuplicateRecord))
	assert.Equal(t, first, second)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) CreateMatch(context.Context, *store.Match, []store.MatchPlayer) (string, error) {
	return "", errors.New("database is locked")
}

func TestCreateMatchRecordUnavailable(t *testing.T) {
	r := New(brokenStore{})
	_, err := r.CreateMatchRecord(context.Background(), sampleRecord())
	assert.True(t, errors.Is(err, errs.ErrPersistenceUnavailable))
	assert.Contains(t, err.Error(), "database is locked")
}
