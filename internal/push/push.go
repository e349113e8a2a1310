// Package push delivers Web Push notifications to players' browsers.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/store"
)

type Service struct {
	store        store.Store
	vapidPublic  string
	vapidPrivate string
	vapidSubject string
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string // mailto:your-email@example.com
}

func NewService(st store.Store, cfg Config) *Service {
	return &Service{
		store:        st,
		vapidPublic:  cfg.VAPIDPublicKey,
		vapidPrivate: cfg.VAPIDPrivateKey,
		vapidSubject: cfg.VAPIDSubject,
	}
}

type NotificationPayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Icon  string                 `json:"icon,omitempty"`
	Badge string                 `json:"badge,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Tag   string                 `json:"tag,omitempty"`
}

// Enabled reports whether VAPID keys are configured.
func (s *Service) Enabled() bool {
	return s.vapidPublic != "" && s.vapidPrivate != ""
}

// SendToUser sends a push notification to all subscriptions for a player.
func (s *Service) SendToUser(ctx context.Context, playerID string, payload NotificationPayload) error {
	subs, err := s.store.GetPushSubscriptions(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to get subscriptions: %w", err)
	}

	if len(subs) == 0 {
		log.WithField("player", playerID).Debug("No push subscriptions")
		return nil
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	successCount := 0

	for _, sub := range subs {
		entry := log.WithFields(log.Fields{"player": playerID, "endpoint": sub.Endpoint})
		subscription := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, payloadBytes, subscription, &webpush.Options{
			Subscriber:      s.vapidSubject,
			VAPIDPublicKey:  s.vapidPublic,
			VAPIDPrivateKey: s.vapidPrivate,
			TTL:             60, // seconds
		})
		if err != nil {
			entry.WithError(err).Warn("Failed to send push")
			lastErr = err
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			entry.Info("Subscription expired, removing")
			if err := s.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				entry.WithError(err).Warn("Failed to delete subscription")
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			entry.WithField("status", resp.StatusCode).Warn("Push notification rejected")
			lastErr = fmt.Errorf("push failed with status %d", resp.StatusCode)
		default:
			successCount++
		}
	}

	if successCount > 0 {
		return nil // At least one succeeded
	}

	if lastErr != nil {
		return lastErr
	}

	return fmt.Errorf("all push notifications failed")
}

// SendToMultipleUsers sends a push notification to several players in the
// background.
func (s *Service) SendToMultipleUsers(ctx context.Context, playerIDs []string, payload NotificationPayload) {
	for _, id := range playerIDs {
		id := id
		go func() {
			if err := s.SendToUser(ctx, id, payload); err != nil {
				log.WithError(err).WithField("player", id).Warn("Failed to send push")
			}
		}()
	}
}

// GetPublicKey returns the VAPID public key for frontend use
func (s *Service) GetPublicKey() string {
	return s.vapidPublic
}
