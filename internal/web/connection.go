package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/auth"
	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/roster"
)

const connectionBuffer = 64

// connection is one live push channel (WebSocket or SSE) bound to a player.
type connection struct {
	id     string
	player roster.Player
	out    <-chan broadcast.Message
	log    *log.Entry
}

// connect registers a new connection with the hub, binds it to the caller's
// session and subscribes it to the queue. On failure the error has already
// been written to w.
func (s *Server) connect(w http.ResponseWriter, r *http.Request) (*connection, bool) {
	player, ok := auth.PlayerFromContext(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return nil, false
	}

	c := &connection{
		id:     uuid.NewString(),
		player: player,
	}
	c.log = log.WithFields(log.Fields{"conn": c.id, "player": player.ID})
	c.out = s.hub.Register(c.id, connectionBuffer)

	sess, err := s.registry.Attach(c.id, player.ID)
	if err != nil {
		s.hub.Unregister(c.id)
		if errors.Is(err, errs.ErrDuplicateSession) {
			c.log.Info("Rejected duplicate connection")
		}
		writeError(w, err)
		return nil, false
	}
	if err := s.hub.Subscribe(c.id, broadcast.QueueTopic(s.queueID)); err != nil {
		s.disconnect(c)
		writeError(w, err)
		return nil, false
	}

	c.log.WithField("resumed", sess.Resumed).Info("Client connected")
	return c, true
}

// resync pushes current state to a freshly connected client.
func (s *Server) resync(ctx context.Context, c *connection) {
	if err := s.coordinator.Resync(ctx, c.id, c.player.ID); err != nil {
		c.log.WithError(err).Warn("Failed to resync client")
	}
}

func (s *Server) disconnect(c *connection) {
	s.registry.Detach(c.id)
	s.hub.Unregister(c.id)
	c.log.Info("Client disconnected")
}
