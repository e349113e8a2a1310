package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/edvart/inhouse-queue/internal/broadcast"
)

// handleSSE streams events to a client that cannot use WebSockets. Commands
// from SSE clients arrive through the plain HTTP routes.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	c, ok := s.connect(w, r)
	if !ok {
		return
	}
	defer s.disconnect(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial keepalive
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.resync(r.Context(), c)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
			s.registry.Touch(c.id)
		case msg, ok := <-c.out:
			if !ok {
				// Dropped by the hub for falling behind.
				c.log.Warn("SSE client fell behind")
				return
			}
			data, err := broadcast.Encode(msg)
			if err != nil {
				c.log.WithError(err).Error("Failed to encode event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
			flusher.Flush()
		}
	}
}
