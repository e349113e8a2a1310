package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, id, name string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.UpsertUser(context.Background(), &User{
		ID: id, Name: name, Rating: 1000, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestUpsertUserKeepsRating(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "p1", "Alice")
	require.NoError(t, s.UpdateRating(ctx, "p1", 1350))

	now := time.Now()
	require.NoError(t, s.UpsertUser(ctx, &User{ID: "p1", Name: "Alice2", Rating: 1000, CreatedAt: now, UpdatedAt: now}))

	u, err := s.GetUser(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice2", u.Name)
	assert.Equal(t, 1350, u.Rating)

	missing, err := s.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionExpiry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "p1", "Alice")

	now := time.Now()
	require.NoError(t, s.CreateSession(ctx, &Session{ID: "live", PlayerID: "p1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, &Session{ID: "old", PlayerID: "p1", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}))

	live, err := s.GetSession(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "p1", live.PlayerID)

	old, err := s.GetSession(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestCreateMatchDuplicateLobby(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "p1", "Alice")
	seedUser(t, s, "p2", "Bob")

	now := time.Now().UTC().Truncate(time.Second)
	match := &Match{
		ID:          "m1",
		LobbyID:     "l1",
		SelectedMap: "Inferno",
		Bans: []BanEntry{
			{Team: "a", Map: "Dust2", PlayerID: "p1", At: now},
			{Team: "b", Map: "Nuke", At: now, Auto: true},
		},
		CreatedAt:   now,
		CompletedAt: now,
	}
	players := []MatchPlayer{
		{PlayerID: "p1", Team: "a", WasLeader: true},
		{PlayerID: "p2", Team: "b", WasLeader: true},
	}

	id, err := s.CreateMatch(ctx, match, players)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	again := *match
	again.ID = "m2"
	id, err = s.CreateMatch(ctx, &again, players)
	assert.True(t, errors.Is(err, ErrDuplicateMatch))
	assert.Equal(t, "m1", id, "duplicate should report the existing match id")

	got, err := s.GetMatch(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Inferno", got.SelectedMap)
	require.Len(t, got.Bans, 2)
	assert.Equal(t, "Dust2", got.Bans[0].Map)
	assert.True(t, got.Bans[1].Auto)

	mps, err := s.GetMatchPlayers(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, mps, 2)
}

func TestListMatchesExcludesBots(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "p1", "Alice")

	now := time.Now()
	_, err := s.CreateMatch(ctx, &Match{ID: "real", LobbyID: "l1", SelectedMap: "Mirage", CreatedAt: now, CompletedAt: now},
		[]MatchPlayer{{PlayerID: "p1", Team: "a"}})
	require.NoError(t, err)
	_, err = s.CreateMatch(ctx, &Match{ID: "bots", LobbyID: "l2", SelectedMap: "Mirage", HasBots: true, CreatedAt: now, CompletedAt: now.Add(time.Second)},
		[]MatchPlayer{{PlayerID: "p1", Team: "a"}, {PlayerID: "bot-1", Team: "b", IsBot: true}})
	require.NoError(t, err)

	humans, err := s.ListMatchesWithPlayers(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, humans, 1)
	assert.Equal(t, "real", humans[0].ID)
	require.Len(t, humans[0].TeamA, 1)
	assert.Equal(t, "Alice", humans[0].TeamA[0].Name)

	all, err := s.ListMatchesWithPlayers(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPushSubscriptions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "p1", "Alice")

	require.NoError(t, s.SavePushSubscription(ctx, &PushSubscription{PlayerID: "p1", Endpoint: "https://push/1", P256dh: "k", Auth: "a"}))
	require.NoError(t, s.SavePushSubscription(ctx, &PushSubscription{PlayerID: "p1", Endpoint: "https://push/1", P256dh: "k2", Auth: "a2"}))

	subs, err := s.GetPushSubscriptions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256dh)

	require.NoError(t, s.DeletePushSubscription(ctx, "https://push/1"))
	subs, err = s.GetPushSubscriptions(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
