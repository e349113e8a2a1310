package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/queue"
	"github.com/edvart/inhouse-queue/internal/roster"
)

type okRecorder struct{}

func (okRecorder) CreateMatchRecord(context.Context, lobby.MatchRecord) (string, error) {
	return "match-1", nil
}

type env struct {
	coord *Coordinator
	queue *queue.Manager
	hub   *broadcast.Hub
}

func newEnv(t *testing.T, lobbySize int) *env {
	t.Helper()
	hub := broadcast.NewHub()
	lc := lobby.DefaultConfig()
	lc.MapPool = []string{"A", "B", "C"}
	lc.ReadyTimeout = 0
	lc.BanTurnTimeout = 0
	lc.RetainFor = time.Hour

	q := queue.NewManager(queue.Config{ID: "main", LobbySize: lobbySize, Lobby: lc}, queue.Deps{
		Publisher: hub,
		Recorder:  okRecorder{},
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go q.Run(ctx)

	return &env{coord: New(q, hub), queue: q, hub: hub}
}

func caller(id string) Caller {
	return Caller{ConnectionID: "conn-" + id, Player: roster.Player{ID: id, Name: id, Rating: 1000}}
}

func receive(t *testing.T, ch <-chan broadcast.Message, typ string) broadcast.Message {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case m, ok := <-ch:
			require.True(t, ok, "connection closed")
			if m.Type == typ {
				return m
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr bool
	}{
		{name: "join", input: `{"type":"join-queue"}`, want: JoinQueue{}},
		{name: "leave", input: `{"type":"leave-queue"}`, want: LeaveQueue{}},
		{name: "ready without lobby", input: `{"type":"mark-ready"}`, want: MarkReady{}},
		{name: "ban", input: `{"type":"ban-map","lobbyId":"l1","map":" Nuke "}`, want: BanMap{LobbyID: "l1", Map: "Nuke"}},
		{name: "ban without map", input: `{"type":"ban-map","lobbyId":"l1"}`, wantErr: true},
		{name: "leave lobby", input: `{"type":"leave-lobby","lobbyId":"l1"}`, want: LeaveLobby{LobbyID: "l1"}},
		{name: "ready all", input: `{"type":"ready-all","lobbyId":"l1"}`, want: ReadyAll{LobbyID: "l1"}},
		{name: "ready all without lobby", input: `{"type":"ready-all"}`, wantErr: true},
		{name: "force cancel", input: `{"type":"force-cancel","lobbyId":"l1","reason":"x"}`, want: ForceCancel{LobbyID: "l1", Reason: "x"}},
		{name: "fill bots", input: `{"type":"fill-bots","count":3}`, want: FillBots{Count: 3}},
		{name: "too many bots", input: `{"type":"fill-bots","count":1000}`, wantErr: true},
		{name: "kick", input: `{"type":"kick-player","playerId":"p1"}`, want: KickPlayer{PlayerID: "p1"}},
		{name: "kick without player", input: `{"type":"kick-player"}`, wantErr: true},
		{name: "wrong field type", input: `{"type":"fill-bots","count":"three"}`, wantErr: true},
		{name: "unknown", input: `{"type":"self-destruct"}`, wantErr: true},
		{name: "missing type", input: `{}`, wantErr: true},
		{name: "not json", input: `ban Nuke`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrInvalidCommand))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrivilegedCommandsNeedAdmin(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	out := e.hub.Register("conn-p1", 8)

	for _, cmd := range []Command{ReadyAll{LobbyID: "l1"}, ForceCancel{LobbyID: "l1"}, FillBots{}, KickPlayer{PlayerID: "p2"}} {
		err := e.coord.Dispatch(ctx, caller("p1"), cmd)
		assert.True(t, errors.Is(err, errs.ErrForbidden), cmd.Type())

		m := receive(t, out, broadcast.TypeActionRejected)
		assert.Equal(t, errs.CodeForbidden, m.Payload.(broadcast.ActionRejected).Code)
	}
}

func TestUnauthenticatedCaller(t *testing.T) {
	e := newEnv(t, 10)
	err := e.coord.Dispatch(context.Background(), Caller{}, JoinQueue{})
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestRejectionGoesOnlyToCaller(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	mine := e.hub.Register("conn-p1", 8)
	theirs := e.hub.Register("conn-p2", 8)

	require.NoError(t, e.coord.Dispatch(ctx, caller("p1"), JoinQueue{}))
	err := e.coord.Dispatch(ctx, caller("p1"), JoinQueue{})
	assert.True(t, errors.Is(err, errs.ErrAlreadyQueued))

	m := receive(t, mine, broadcast.TypeActionRejected)
	rej := m.Payload.(broadcast.ActionRejected)
	assert.Equal(t, errs.CodeAlreadyQueued, rej.Code)
	assert.Equal(t, "conflict", rej.Category)

	select {
	case m := <-theirs:
		t.Fatalf("other connection received %s", m.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHandleRejectsMalformedFrames(t *testing.T) {
	e := newEnv(t, 10)
	out := e.hub.Register("conn-p1", 8)

	err := e.coord.Handle(context.Background(), caller("p1"), []byte(`{"type":`))
	assert.True(t, errors.Is(err, errs.ErrInvalidCommand))
	m := receive(t, out, broadcast.TypeActionRejected)
	assert.Equal(t, errs.CodeInvalidCommand, m.Payload.(broadcast.ActionRejected).Code)
}

func TestCommandsDriveFullLobby(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	p1, p2 := caller("p1"), caller("p2")
	p1.Player.Rating = 1100

	require.NoError(t, e.coord.Handle(ctx, p1, []byte(`{"type":"join-queue"}`)))
	require.NoError(t, e.coord.Handle(ctx, p2, []byte(`{"type":"join-queue"}`)))

	lb, err := e.queue.LobbyOf(ctx, "p1")
	require.NoError(t, err)
	out := e.hub.Register("watcher", 64)
	require.NoError(t, e.hub.Subscribe("watcher", broadcast.LobbyTopic(lb.ID())))

	require.NoError(t, e.coord.Dispatch(ctx, p1, MarkReady{}))
	require.NoError(t, e.coord.Dispatch(ctx, p2, MarkReady{LobbyID: lb.ID()}))

	// p2's team has the lower rating and bans first.
	err = e.coord.Dispatch(ctx, p1, BanMap{Map: "A"})
	assert.True(t, errors.Is(err, errs.ErrNotYourTurn))
	require.NoError(t, e.coord.Dispatch(ctx, p2, BanMap{Map: "A"}))
	require.NoError(t, e.coord.Dispatch(ctx, p1, BanMap{Map: "C"}))

	done := receive(t, out, lobby.TypeDraftComplete)
	assert.Equal(t, "B", done.Payload.(lobby.DraftComplete).SelectedMap)

	require.Eventually(t, func() bool {
		snap, err := e.coord.Lobby(ctx, lb.ID())
		return err == nil && snap.Phase == lobby.PhaseComplete && snap.MatchID == "match-1"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		st, err := e.coord.State(ctx, "p1")
		return err == nil && st.Lobby == nil && !st.InQueue
	}, time.Second, 5*time.Millisecond, "completed lobbies are not the player's current lobby")
}

func TestLobbyCommandWithoutLobby(t *testing.T) {
	e := newEnv(t, 10)
	err := e.coord.Dispatch(context.Background(), caller("p1"), MarkReady{})
	assert.True(t, errors.Is(err, errs.ErrLobbyNotFound))
}

func TestAdminCommands(t *testing.T) {
	e := newEnv(t, 4)
	ctx := context.Background()
	admin := caller("admin")
	admin.Admin = true

	require.NoError(t, e.coord.Dispatch(ctx, caller("p1"), JoinQueue{}))
	require.NoError(t, e.coord.Dispatch(ctx, caller("p2"), JoinQueue{}))
	require.NoError(t, e.coord.Dispatch(ctx, admin, KickPlayer{PlayerID: "p2"}))

	st, err := e.coord.State(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, st.InQueue)
	assert.Equal(t, 1, st.Position)
	assert.Equal(t, 1, st.Queue.Size)

	require.NoError(t, e.coord.Dispatch(ctx, admin, FillBots{}))
	lb, err := e.queue.LobbyOf(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, e.coord.Dispatch(ctx, admin, ForceCancel{LobbyID: lb.ID(), Reason: "testing"}))
	snap, err := e.coord.Lobby(ctx, lb.ID())
	require.NoError(t, err)
	assert.Equal(t, lobby.PhaseCancelled, snap.Phase)
	assert.Equal(t, "testing", snap.CancelReason)
}

func TestResync(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()

	require.NoError(t, e.coord.Dispatch(ctx, caller("p1"), JoinQueue{}))
	require.NoError(t, e.coord.Dispatch(ctx, caller("p2"), JoinQueue{}))

	out := e.hub.Register("fresh", 8)
	require.NoError(t, e.coord.Resync(ctx, "fresh", "p1"))

	q := receive(t, out, queue.TypeSizeChanged)
	assert.Equal(t, broadcast.QueueTopic("main"), q.Topic)
	assert.Equal(t, 0, q.Payload.(queue.SizeChanged).Size)

	m := receive(t, out, lobby.TypeStateChanged)
	snap := m.Payload.(lobby.StateChanged).Lobby
	assert.True(t, snap.Member("p1"))
	assert.Equal(t, lobby.PhaseReadyCheck, snap.Phase)
}

func TestSessionExpiredLeavesQueueAndLobby(t *testing.T) {
	e := newEnv(t, 4)
	ctx := context.Background()

	require.NoError(t, e.coord.Dispatch(ctx, caller("p1"), JoinQueue{}))
	e.coord.SessionExpired("p1", "main", "")
	st, err := e.coord.State(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, st.InQueue)

	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, e.coord.Dispatch(ctx, caller(id), JoinQueue{}))
	}
	lb, err := e.queue.LobbyOf(ctx, "p1")
	require.NoError(t, err)

	e.coord.SessionExpired("p1", "", lb.ID())
	snap, err := lb.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Member("p1"))

	_, err = e.queue.LobbyOf(ctx, "p1")
	assert.True(t, errors.Is(err, errs.ErrLobbyNotFound))
	st, err = e.coord.State(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, st.Lobby)
}

func TestLeaveLobbyClearsPlayerLobby(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()

	for _, id := range []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"} {
		require.NoError(t, e.coord.Dispatch(ctx, caller(id), JoinQueue{}))
	}
	lb, err := e.queue.LobbyOf(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, e.coord.Dispatch(ctx, caller("p1"), LeaveLobby{LobbyID: lb.ID()}))

	st, err := e.coord.State(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, st.Lobby)
	st, err = e.coord.State(ctx, "p2")
	require.NoError(t, err)
	require.NotNil(t, st.Lobby, "remaining members keep their lobby")

	out := e.hub.Register("fresh", 8)
	require.NoError(t, e.coord.Resync(ctx, "fresh", "p1"))
	receive(t, out, queue.TypeSizeChanged)
	select {
	case m := <-out:
		t.Fatalf("resync after leaving sent %s", m.Type)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, e.coord.Dispatch(ctx, caller("p1"), JoinQueue{}))
	st, err = e.coord.State(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, st.InQueue)
}
