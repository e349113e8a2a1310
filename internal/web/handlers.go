package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/auth"
	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/coordinator"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/roster"
)

const handlerTimeout = 10 * time.Second

// requestLogger logs each request through logrus.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).Round(time.Microsecond),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// statusFor maps an error category to an HTTP status code.
func statusFor(err error) int {
	switch errs.CategoryOf(errs.CodeOf(err)) {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.Conflict:
		return http.StatusConflict
	case errs.Auth:
		if errs.CodeOf(err) == errs.CodeForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Dependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

// writeError responds with the same body a WebSocket client receives as an
// action.rejected event.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), broadcast.NewActionRejected(err))
}

func (s *Server) caller(r *http.Request) (coordinator.Caller, bool) {
	player, ok := auth.PlayerFromContext(r.Context())
	if !ok {
		return coordinator.Caller{}, false
	}
	return coordinator.Caller{Player: player, Admin: s.admins.IsAdmin(player.ID)}, true
}

// dispatch runs cmd for the authenticated caller and writes the outcome.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd coordinator.Command) {
	caller, ok := s.caller(r)
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	if err := s.coordinator.Dispatch(ctx, caller, cmd); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.JoinQueue{})
}

func (s *Server) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.LeaveQueue{})
}

func (s *Server) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.MarkReady{LobbyID: chi.URLParam(r, "lobbyID")})
}

func (s *Server) handleLeaveLobby(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.LeaveLobby{LobbyID: chi.URLParam(r, "lobbyID")})
}

func (s *Server) handleBanMap(w http.ResponseWriter, r *http.Request) {
	mapName := chi.URLParam(r, "map")
	if mapName == "" {
		writeError(w, errs.New(errs.CodeInvalidCommand, "map is required"))
		return
	}
	s.dispatch(w, r, coordinator.BanMap{LobbyID: chi.URLParam(r, "lobbyID"), Map: mapName})
}

// handleState returns the queue and, for a logged-in player, their lobby.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	playerID := ""
	if player, err := s.sessions.Player(r.Context(), r); err == nil {
		playerID = player.ID
	}

	st, err := s.coordinator.State(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetLobby(w http.ResponseWriter, r *http.Request) {
	snap, err := s.coordinator.Lobby(r.Context(), chi.URLParam(r, "lobbyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type matchPlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Leader bool   `json:"leader"`
}

type matchView struct {
	ID          string            `json:"id"`
	LobbyID     string            `json:"lobbyId"`
	SelectedMap string            `json:"selectedMap"`
	Bans        []string          `json:"bans"`
	HasBots     bool              `json:"hasBots"`
	CompletedAt time.Time         `json:"completedAt"`
	TeamA       []matchPlayerView `json:"teamA"`
	TeamB       []matchPlayerView `json:"teamB"`
}

// handleListMatches returns recent recorded matches. Bot-filled matches are
// hidden unless bots=true.
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}
	includeBots := r.URL.Query().Get("bots") == "true"

	matches, err := s.store.ListMatchesWithPlayers(r.Context(), limit, includeBots)
	if err != nil {
		log.WithError(err).Error("Failed to list matches")
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}

	out := make([]matchView, 0, len(matches))
	for _, m := range matches {
		v := matchView{
			ID:          m.ID,
			LobbyID:     m.LobbyID,
			SelectedMap: m.SelectedMap,
			HasBots:     m.HasBots,
			CompletedAt: m.CompletedAt,
			Bans:        make([]string, 0, len(m.Bans)),
		}
		for _, b := range m.Bans {
			v.Bans = append(v.Bans, b.Map)
		}
		for _, p := range m.TeamA {
			v.TeamA = append(v.TeamA, matchPlayerView{ID: p.PlayerID, Name: p.Name, Leader: p.WasLeader})
		}
		for _, p := range m.TeamB {
			v.TeamB = append(v.TeamB, matchPlayerView{ID: p.PlayerID, Name: p.Name, Leader: p.WasLeader})
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if _, err := s.coordinator.State(ctx, ""); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.Connections(),
		"sessions":    s.registry.Count(),
	})
}

// handleAddFakePlayers queues the dev-mode fake users.
func (s *Server) handleAddFakePlayers(w http.ResponseWriter, r *http.Request) {
	count := 9
	if n, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && n > 0 && n <= 50 {
		count = n
	}
	if err := s.steamAuth.CreateFakeUsers(r.Context(), count); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}

	players := roster.NewStoreGateway(s.store)
	added := 0
	for i := 1; i <= count; i++ {
		p, err := players.Lookup(r.Context(), fmt.Sprintf("fake_%d", i))
		if err != nil {
			writeError(w, err)
			return
		}
		err = s.coordinator.Dispatch(r.Context(), coordinator.Caller{Player: p}, coordinator.JoinQueue{})
		if err == nil {
			added++
		}
	}

	log.WithField("players", added).Info("Added fake players to queue")
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}
