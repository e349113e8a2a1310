package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/coordinator"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
)

const defaultCancelReason = "cancelled by admin"

// handleAdminReadyAll marks every player in a lobby's ready check as ready.
func (s *Server) handleAdminReadyAll(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.ReadyAll{LobbyID: chi.URLParam(r, "lobbyID")})
}

// handleAdminCancelLobby cancels an open lobby. The reason comes from the
// "reason" query or form value.
func (s *Server) handleAdminCancelLobby(w http.ResponseWriter, r *http.Request) {
	reason := r.FormValue("reason")
	if reason == "" {
		reason = defaultCancelReason
	}
	lobbyID := chi.URLParam(r, "lobbyID")
	log.WithFields(log.Fields{"lobby": lobbyID, "reason": reason}).Info("Admin cancelling lobby")
	s.dispatch(w, r, coordinator.ForceCancel{LobbyID: lobbyID, Reason: reason})
}

// handleAdminFillBots tops the queue up with placeholder players.
func (s *Server) handleAdminFillBots(w http.ResponseWriter, r *http.Request) {
	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 100 {
			writeError(w, errs.New(errs.CodeInvalidCommand, "count must be 0-100"))
			return
		}
		count = n
	}
	s.dispatch(w, r, coordinator.FillBots{Count: count})
}

// handleAdminKickPlayer kicks a player from the queue.
func (s *Server) handleAdminKickPlayer(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.KickPlayer{PlayerID: chi.URLParam(r, "playerID")})
}

// handleAdminSetRating updates the rating used for team balancing. It takes
// effect the next time the player joins the queue.
func (s *Server) handleAdminSetRating(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	rating, err := strconv.Atoi(chi.URLParam(r, "rating"))
	if err != nil || rating < 1 || rating > 10000 {
		writeError(w, errs.New(errs.CodeInvalidCommand, "rating must be 1-10000"))
		return
	}

	user, err := s.store.GetUser(r.Context(), playerID)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}
	if user == nil {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	if err := s.store.UpdateRating(r.Context(), playerID, rating); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}

	log.WithFields(log.Fields{"player": playerID, "rating": rating}).Info("Admin set player rating")
	w.WriteHeader(http.StatusNoContent)
}

type adminUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Admin  bool   `json:"admin"`
}

// handleAdminUsers lists every known user.
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list users")
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}

	out := make([]adminUser, 0, len(users))
	for _, u := range users {
		out = append(out, adminUser{ID: u.ID, Name: u.Name, Rating: u.Rating, Admin: s.admins.IsAdmin(u.ID)})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAdminState returns the queue, every open or retained lobby, and
// connection counts.
func (s *Server) handleAdminState(w http.ResponseWriter, r *http.Request) {
	st, err := s.coordinator.State(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}

	lobbies := make([]lobby.Snapshot, 0, len(st.Queue.Lobbies))
	for _, id := range st.Queue.Lobbies {
		snap, err := s.coordinator.Lobby(r.Context(), id)
		if errors.Is(err, errs.ErrLobbyClosed) || errors.Is(err, errs.ErrLobbyNotFound) {
			continue
		} else if err != nil {
			writeError(w, err)
			return
		}
		lobbies = append(lobbies, snap)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue":       st.Queue,
		"lobbies":     lobbies,
		"connections": s.hub.Connections(),
		"sessions":    s.registry.Count(),
	})
}
