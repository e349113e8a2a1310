package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/coordinator"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsMaxFrame     = 4096
)

// handleWebSocket runs the bidirectional client channel: events go out as
// JSON frames and command frames come back in.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, ok := s.connect(w, r)
	if !ok {
		return
	}
	defer s.disconnect(c)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.devMode,
	})
	if err != nil {
		c.log.WithError(err).Warn("WebSocket handshake failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsMaxFrame)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		s.writePump(ctx, conn, c)
	}()

	s.resync(ctx, c)

	caller := coordinator.Caller{
		ConnectionID: c.id,
		Player:       c.player,
		Admin:        s.admins.IsAdmin(c.player.ID),
	}
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					c.log.WithError(err).Debug("WebSocket read failed")
				}
			}
			return
		}
		s.registry.Touch(c.id)
		if typ != websocket.MessageText {
			continue
		}
		// Rejections are delivered on the connection by the coordinator.
		_ = s.coordinator.Handle(ctx, caller, data)
	}
}

// writePump forwards hub messages to the socket and pings at the heartbeat
// interval. It returns when the connection fails or the hub drops it.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, c *connection) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.WithError(err).Debug("WebSocket ping failed")
				return
			}
			s.registry.Touch(c.id)
		case msg, ok := <-c.out:
			if !ok {
				c.log.Warn("WebSocket client fell behind")
				conn.Close(websocket.StatusPolicyViolation, "too slow, reconnect to resync")
				return
			}
			data, err := broadcast.Encode(msg)
			if err != nil {
				c.log.WithError(err).Error("Failed to encode event")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
