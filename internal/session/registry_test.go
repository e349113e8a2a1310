package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvart/inhouse-queue/internal/errs"
)

type fakeHub struct {
	mu           sync.Mutex
	subscribed   map[string]string
	unsubscribed []string
	unregistered []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{subscribed: make(map[string]string)}
}

func (h *fakeHub) Subscribe(connID, topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribed[connID] = topic
	return nil
}

func (h *fakeHub) Unsubscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribed = append(h.unsubscribed, connID+" "+topic)
}

func (h *fakeHub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregistered = append(h.unregistered, connID)
}

func (h *fakeHub) topicOf(connID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribed[connID]
}

type expiry struct {
	player, queue, lobby string
}

type fakeLeaver struct {
	expired chan expiry
}

func (l *fakeLeaver) SessionExpired(playerID, queueID, lobbyID string) {
	l.expired <- expiry{playerID, queueID, lobbyID}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(grace time.Duration) (*Registry, *fakeHub, *fakeLeaver, *clock) {
	hub := newFakeHub()
	leaver := &fakeLeaver{expired: make(chan expiry, 4)}
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(hub, grace)
	r.now = clk.Now
	r.SetLeaver(leaver)
	return r, hub, leaver, clk
}

func TestAttachAndGet(t *testing.T) {
	r, _, _, _ := newTestRegistry(time.Minute)

	s, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	assert.True(t, s.Live)
	assert.False(t, s.Resumed)
	assert.Equal(t, "c1", s.ConnectionID)

	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "p1", got.PlayerID)
	assert.Equal(t, 1, r.Count())

	_, err = r.Attach("", "p1")
	assert.True(t, errors.Is(err, errs.ErrInvalidCommand))
}

func TestDuplicateSessionRejected(t *testing.T) {
	r, _, _, clk := newTestRegistry(time.Minute)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	_, err = r.Attach("c2", "p1")
	assert.True(t, errors.Is(err, errs.ErrDuplicateSession))

	_, ok := r.Get("c2")
	assert.False(t, ok)
}

func TestStaleSessionIsEvicted(t *testing.T) {
	r, hub, _, clk := newTestRegistry(time.Minute)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	r.JoinedLobby("p1", "l1")

	clk.Advance(2 * time.Minute)
	s, err := r.Attach("c2", "p1")
	require.NoError(t, err)
	assert.True(t, s.Resumed)
	assert.Equal(t, "l1", s.LobbyID)

	assert.Equal(t, []string{"c1"}, hub.unregistered)
	assert.Equal(t, "lobby:l1", hub.topicOf("c2"))
	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
}

func TestHeartbeatKeepsSessionFresh(t *testing.T) {
	r, _, _, clk := newTestRegistry(time.Minute)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	clk.Advance(50 * time.Second)
	r.Touch("c1")
	clk.Advance(50 * time.Second)

	_, err = r.Attach("c2", "p1")
	assert.True(t, errors.Is(err, errs.ErrDuplicateSession))
}

func TestReconnectWithinGraceResumes(t *testing.T) {
	r, hub, leaver, _ := newTestRegistry(time.Hour)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	r.JoinedQueue("p1", "main")
	r.JoinedLobby("p1", "l1")
	assert.Equal(t, "lobby:l1", hub.topicOf("c1"))

	r.Detach("c1")
	assert.Equal(t, 0, r.Count())
	s, ok := r.Player("p1")
	require.True(t, ok)
	assert.False(t, s.Live)
	assert.False(t, s.DetachedAt.IsZero())

	s, err = r.Attach("c2", "p1")
	require.NoError(t, err)
	assert.True(t, s.Resumed)
	assert.Equal(t, "main", s.QueueID)
	assert.Equal(t, "l1", s.LobbyID)
	assert.Equal(t, "lobby:l1", hub.topicOf("c2"))

	select {
	case e := <-leaver.expired:
		t.Fatalf("unexpected expiry %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestGraceExpiryLeaves(t *testing.T) {
	r, _, leaver, _ := newTestRegistry(10 * time.Millisecond)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	r.JoinedQueue("p1", "main")
	r.Detach("c1")

	select {
	case e := <-leaver.expired:
		assert.Equal(t, expiry{"p1", "main", ""}, e)
	case <-time.After(time.Second):
		t.Fatal("session did not expire")
	}
	_, ok := r.Player("p1")
	assert.False(t, ok)
}

func TestDetachWithoutMembershipForgetsPlayer(t *testing.T) {
	r, _, leaver, _ := newTestRegistry(10 * time.Millisecond)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	r.Detach("c1")
	r.Detach("c1")

	_, ok := r.Player("p1")
	assert.False(t, ok)
	select {
	case e := <-leaver.expired:
		t.Fatalf("unexpected expiry %+v", e)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestLeftLobbyUnsubscribes(t *testing.T) {
	r, hub, _, _ := newTestRegistry(time.Minute)

	_, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	r.JoinedLobby("p1", "l1")
	r.LeftLobby("p1", "other")
	r.LeftLobby("p1", "l1")

	assert.Equal(t, []string{"c1 lobby:l1"}, hub.unsubscribed)
	s, ok := r.Get("c1")
	require.True(t, ok)
	assert.Empty(t, s.LobbyID)
}

func TestMembershipWithoutConnection(t *testing.T) {
	r, hub, _, _ := newTestRegistry(time.Minute)

	r.JoinedQueue("p1", "main")
	r.JoinedLobby("p1", "l1")
	assert.Empty(t, hub.subscribed)

	s, err := r.Attach("c1", "p1")
	require.NoError(t, err)
	assert.True(t, s.Resumed)

	r.LeftQueue("p1", "main")
	r.LeftLobby("p1", "l1")
	r.Detach("c1")
	_, ok := r.Player("p1")
	assert.False(t, ok)
}
