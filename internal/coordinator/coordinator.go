// Package coordinator is the command boundary between transports and the
// matchmaking core. It checks privileges, routes each command to the queue
// manager or the right lobby, and sends rejections back to the connection
// that issued the command.
package coordinator

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/queue"
	"github.com/edvart/inhouse-queue/internal/roster"
)

// leaveTimeout bounds leaves triggered by expired sessions, which have no
// request context of their own.
const leaveTimeout = 5 * time.Second

// Queue is the queue manager as seen by the coordinator.
type Queue interface {
	Join(ctx context.Context, p roster.Player) error
	Leave(ctx context.Context, playerID string) error
	Kick(ctx context.Context, adminID, playerID string) error
	FillBots(ctx context.Context, adminID string, count int) (int, error)
	Lookup(ctx context.Context, lobbyID string) (*lobby.Lobby, error)
	LobbyOf(ctx context.Context, playerID string) (*lobby.Lobby, error)
	Snapshot(ctx context.Context) (queue.View, error)
}

// Hub delivers messages to a single connection.
type Hub interface {
	SendTo(connID, topic string, event broadcast.Event) bool
	Reject(connID string, err error) bool
}

// Caller identifies who issued a command. ConnectionID is empty for plain
// HTTP requests, whose errors are returned in the response instead.
type Caller struct {
	ConnectionID string
	Player       roster.Player
	Admin        bool
}

type Coordinator struct {
	queue Queue
	hub   Hub
}

// New creates a coordinator routing to q and replying through hub.
func New(q Queue, hub Hub) *Coordinator {
	return &Coordinator{queue: q, hub: hub}
}

// Handle decodes a raw command frame and dispatches it.
func (c *Coordinator) Handle(ctx context.Context, caller Caller, data []byte) error {
	cmd, err := DecodeCommand(data)
	if err != nil {
		c.reject(caller, "", err)
		return err
	}
	return c.Dispatch(ctx, caller, cmd)
}

// Dispatch runs cmd on behalf of caller. A failed command is also sent to
// the caller's connection as an action.rejected event.
func (c *Coordinator) Dispatch(ctx context.Context, caller Caller, cmd Command) error {
	err := c.dispatch(ctx, caller, cmd)
	if err != nil {
		c.reject(caller, cmd.Type(), err)
	}
	return err
}

func (c *Coordinator) dispatch(ctx context.Context, caller Caller, cmd Command) error {
	if caller.Player.ID == "" {
		return errs.ErrUnauthenticated
	}
	if cmd.privileged() && !caller.Admin {
		return errs.ErrForbidden
	}
	playerID := caller.Player.ID

	switch cmd := cmd.(type) {
	case JoinQueue:
		return c.queue.Join(ctx, caller.Player)
	case LeaveQueue:
		return c.queue.Leave(ctx, playerID)
	case MarkReady:
		lb, err := c.lobbyFor(ctx, cmd.LobbyID, playerID)
		if err != nil {
			return err
		}
		return lb.MarkReady(ctx, playerID)
	case BanMap:
		lb, err := c.lobbyFor(ctx, cmd.LobbyID, playerID)
		if err != nil {
			return err
		}
		return lb.BanMap(ctx, playerID, cmd.Map)
	case LeaveLobby:
		lb, err := c.lobbyFor(ctx, cmd.LobbyID, playerID)
		if err != nil {
			return err
		}
		return lb.Leave(ctx, playerID)
	case ReadyAll:
		lb, err := c.queue.Lookup(ctx, cmd.LobbyID)
		if err != nil {
			return err
		}
		return lb.ReadyAll(ctx, playerID)
	case ForceCancel:
		lb, err := c.queue.Lookup(ctx, cmd.LobbyID)
		if err != nil {
			return err
		}
		return lb.ForceCancel(ctx, playerID, cmd.Reason)
	case FillBots:
		_, err := c.queue.FillBots(ctx, playerID, cmd.Count)
		return err
	case KickPlayer:
		return c.queue.Kick(ctx, playerID, cmd.PlayerID)
	default:
		return errs.New(errs.CodeInvalidCommand, "unsupported command %s", cmd.Type())
	}
}

// lobbyFor resolves an explicit lobby id, or the player's current lobby.
func (c *Coordinator) lobbyFor(ctx context.Context, lobbyID, playerID string) (*lobby.Lobby, error) {
	if lobbyID == "" {
		return c.queue.LobbyOf(ctx, playerID)
	}
	return c.queue.Lookup(ctx, lobbyID)
}

func (c *Coordinator) reject(caller Caller, cmdType string, err error) {
	entry := log.WithFields(log.Fields{
		"player":  caller.Player.ID,
		"conn":    caller.ConnectionID,
		"command": cmdType,
		"code":    errs.CodeOf(err),
	})
	if errs.CodeOf(err) == errs.CodeInternal {
		entry.WithError(err).Error("Command failed")
	} else {
		entry.Debug("Command rejected")
	}
	if caller.ConnectionID != "" && c.hub != nil {
		c.hub.Reject(caller.ConnectionID, err)
	}
}

// Resync sends the current queue and lobby state to a single connection,
// used when a client connects or reconnects.
func (c *Coordinator) Resync(ctx context.Context, connID, playerID string) error {
	view, err := c.queue.Snapshot(ctx)
	if err != nil {
		return err
	}
	c.hub.SendTo(connID, broadcast.QueueTopic(view.QueueID), queue.SizeChanged{
		QueueID:   view.QueueID,
		Size:      view.Size,
		LobbySize: view.LobbySize,
		Entries:   view.Entries,
	})

	if playerID == "" {
		return nil
	}
	lb, err := c.queue.LobbyOf(ctx, playerID)
	if errors.Is(err, errs.ErrLobbyNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	snap, err := lb.Snapshot(ctx)
	if errors.Is(err, errs.ErrLobbyClosed) {
		return nil
	} else if err != nil {
		return err
	}
	c.hub.SendTo(connID, broadcast.LobbyTopic(snap.ID), lobby.StateChanged{Lobby: snap})
	return nil
}

// SessionExpired removes a player whose connection did not come back.
func (c *Coordinator) SessionExpired(playerID, queueID, lobbyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	entry := log.WithField("player", playerID)

	if queueID != "" {
		if err := c.queue.Leave(ctx, playerID); err != nil {
			entry.WithError(err).Warn("Could not remove expired session from queue")
		}
	}
	if lobbyID == "" {
		return
	}
	lb, err := c.queue.Lookup(ctx, lobbyID)
	if err != nil {
		return
	}
	err = lb.Leave(ctx, playerID)
	switch {
	case err == nil:
		entry.WithField("lobby", lobbyID).Info("Removed expired session from lobby")
	case errors.Is(err, errs.ErrLobbyClosed), errors.Is(err, errs.ErrLobbyLocked), errors.Is(err, errs.ErrNotAMember):
	default:
		entry.WithError(err).Warn("Could not remove expired session from lobby")
	}
}
