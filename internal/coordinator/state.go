package coordinator

import (
	"context"
	"errors"

	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/queue"
)

// State is what a player needs to render the page: the queue, whether they
// are in it, and their lobby if they have one.
type State struct {
	Queue    queue.View      `json:"queue"`
	InQueue  bool            `json:"inQueue"`
	Position int             `json:"position,omitempty"` // 1-based, 0 when not queued
	Lobby    *lobby.Snapshot `json:"lobby,omitempty"`
}

// State builds the view for playerID. An empty playerID returns only the
// queue.
func (c *Coordinator) State(ctx context.Context, playerID string) (State, error) {
	view, err := c.queue.Snapshot(ctx)
	if err != nil {
		return State{}, err
	}
	st := State{Queue: view}
	if playerID == "" {
		return st, nil
	}

	for i, e := range view.Entries {
		if e.Player.ID == playerID {
			st.InQueue = true
			st.Position = i + 1
			break
		}
	}

	lb, err := c.queue.LobbyOf(ctx, playerID)
	if errors.Is(err, errs.ErrLobbyNotFound) {
		return st, nil
	} else if err != nil {
		return State{}, err
	}
	snap, err := lb.Snapshot(ctx)
	if errors.Is(err, errs.ErrLobbyClosed) {
		return st, nil
	} else if err != nil {
		return State{}, err
	}
	st.Lobby = &snap
	return st, nil
}

// Lobby returns the snapshot of any active or retained lobby.
func (c *Coordinator) Lobby(ctx context.Context, lobbyID string) (lobby.Snapshot, error) {
	lb, err := c.queue.Lookup(ctx, lobbyID)
	if err != nil {
		return lobby.Snapshot{}, err
	}
	return lb.Snapshot(ctx)
}
