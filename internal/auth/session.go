package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/roster"
	"github.com/edvart/inhouse-queue/internal/store"
)

const (
	SessionCookieName = "session_id"
	SessionDuration   = 7 * 24 * time.Hour
)

// SessionManager handles login sessions and resolves them to players.
type SessionManager struct {
	store   store.Store
	players roster.Gateway
}

// NewSessionManager creates a new session manager.
func NewSessionManager(s store.Store, players roster.Gateway) *SessionManager {
	return &SessionManager{store: s, players: players}
}

// CreateSession creates a new session for a player and sets the cookie.
func (sm *SessionManager) CreateSession(ctx context.Context, w http.ResponseWriter, playerID string) error {
	sessionID, err := generateSessionID()
	if err != nil {
		return err
	}

	session := &store.Session{
		ID:        sessionID,
		PlayerID:  playerID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(SessionDuration),
	}

	if err := sm.store.CreateSession(ctx, session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Credential returns the session token carried by the request, if any.
func Credential(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Player resolves the request's session to a player. It returns
// errs.ErrUnauthenticated when there is no valid session.
func (sm *SessionManager) Player(ctx context.Context, r *http.Request) (roster.Player, error) {
	return sm.players.ResolvePlayer(ctx, Credential(r))
}

// DeleteSession removes the current session.
func (sm *SessionManager) DeleteSession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	token := Credential(r)
	if token == "" {
		return nil
	}

	if err := sm.store.DeleteSession(ctx, token); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	return nil
}

// RequireAuth middleware ensures the request has a valid session and stores
// the player in the request context.
func RequireAuth(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			player, err := sessions.Player(r.Context(), r)
			if err != nil {
				status := http.StatusUnauthorized
				if errs.CodeOf(err) == errs.CodeInternal {
					status = http.StatusInternalServerError
				}
				http.Error(w, "Unauthorized", status)
				return
			}

			ctx := context.WithValue(r.Context(), playerContextKey, player)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey string

const playerContextKey contextKey = "player"

// PlayerFromContext retrieves the player stored by RequireAuth.
func PlayerFromContext(ctx context.Context) (roster.Player, bool) {
	p, ok := ctx.Value(playerContextKey).(roster.Player)
	return p, ok
}

// WithPlayer returns a copy of ctx carrying p, as RequireAuth does.
func WithPlayer(ctx context.Context, p roster.Player) context.Context {
	return context.WithValue(ctx, playerContextKey, p)
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
