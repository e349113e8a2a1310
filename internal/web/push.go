package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/auth"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/push"
	"github.com/edvart/inhouse-queue/internal/store"
)

type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// handleSubscribePush handles push subscription from frontend
func (s *Server) handleSubscribePush(w http.ResponseWriter, r *http.Request) {
	player, ok := auth.PlayerFromContext(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}

	var req PushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, errs.New(errs.CodeInvalidCommand, "invalid subscription"))
		return
	}

	sub := &store.PushSubscription{
		PlayerID: player.ID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}

	if err := s.store.SavePushSubscription(r.Context(), sub); err != nil {
		log.WithError(err).WithField("player", player.ID).Error("Failed to save push subscription")
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleUnsubscribePush handles push unsubscription
func (s *Server) handleUnsubscribePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, errs.New(errs.CodeInvalidCommand, "endpoint is required"))
		return
	}

	if err := s.store.DeletePushSubscription(r.Context(), req.Endpoint); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleGetVAPIDPublicKey returns the VAPID public key for frontend
func (s *Server) handleGetVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.pushService == nil || !s.pushService.Enabled() {
		http.Error(w, "Push notifications not configured", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": s.pushService.GetPublicKey(),
	})
}

// handleTestPush sends a test push notification to the current user
func (s *Server) handleTestPush(w http.ResponseWriter, r *http.Request) {
	if s.pushService == nil || !s.pushService.Enabled() {
		http.Error(w, "Push notifications not configured", http.StatusServiceUnavailable)
		return
	}

	player, ok := auth.PlayerFromContext(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}

	payload := push.NotificationPayload{
		Title: "Test Notification 🧪",
		Body:  "If you see this, push notifications are working!",
		Icon:  "/static/favicon.ico",
		Badge: "/static/favicon.ico",
		Tag:   "test-notification",
		Data: map[string]interface{}{
			"url": "/",
		},
	}

	if err := s.pushService.SendToUser(r.Context(), player.ID, payload); err != nil {
		http.Error(w, "Failed to send test notification", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "Test notification sent"})
}
