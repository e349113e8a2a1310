// Package roster resolves connection credentials to player records.
package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/store"
)

// DefaultRating is assigned to players that have never been rated.
const DefaultRating = 1000

// BotPrefix starts the id of every placeholder player.
const BotPrefix = "bot-"

// IsBot reports whether id belongs to a placeholder player.
func IsBot(id string) bool {
	return strings.HasPrefix(id, BotPrefix)
}

// Player is the identity the matchmaking core works with.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Rating    int    `json:"rating"`
}

// Gateway resolves a credential (session token) to a player.
type Gateway interface {
	ResolvePlayer(ctx context.Context, credential string) (Player, error)
}

// StoreGateway resolves session tokens against the persistent store.
type StoreGateway struct {
	store store.Store
}

// NewStoreGateway creates a gateway backed by s.
func NewStoreGateway(s store.Store) *StoreGateway {
	return &StoreGateway{store: s}
}

// ResolvePlayer looks up the session and its user.
func (g *StoreGateway) ResolvePlayer(ctx context.Context, credential string) (Player, error) {
	if credential == "" {
		return Player{}, errs.ErrUnauthenticated
	}

	session, err := g.store.GetSession(ctx, credential)
	if err != nil {
		return Player{}, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return Player{}, errs.ErrUnauthenticated
	}

	return g.Lookup(ctx, session.PlayerID)
}

// Lookup returns the player with the given id.
func (g *StoreGateway) Lookup(ctx context.Context, playerID string) (Player, error) {
	user, err := g.store.GetUser(ctx, playerID)
	if err != nil {
		return Player{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return Player{}, errs.ErrUnauthenticated
	}
	return FromUser(user), nil
}

// FromUser converts a stored user into a Player.
func FromUser(u *store.User) Player {
	rating := u.Rating
	if rating <= 0 {
		rating = DefaultRating
	}
	return Player{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Rating:    rating,
	}
}
