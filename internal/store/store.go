package store

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateMatch is returned when a match record already exists for a lobby.
var ErrDuplicateMatch = errors.New("match already recorded for lobby")

type User struct {
	ID        string
	Name      string
	AvatarURL string
	Rating    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	ID        string
	PlayerID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BanEntry is one step of a persisted map-ban draft.
type BanEntry struct {
	Team     string    `msgpack:"team"`
	Map      string    `msgpack:"map"`
	PlayerID string    `msgpack:"player_id"`
	At       time.Time `msgpack:"at"`
	Auto     bool      `msgpack:"auto"`
}

type Match struct {
	ID          string
	LobbyID     string
	SelectedMap string
	Bans        []BanEntry
	HasBots     bool
	CreatedAt   time.Time
	CompletedAt time.Time
}

type MatchPlayer struct {
	MatchID   string
	PlayerID  string
	Team      string
	WasLeader bool
	IsBot     bool
}

type MatchPlayerInfo struct {
	PlayerID  string
	Name      string
	Team      string
	WasLeader bool
}

type MatchWithPlayers struct {
	Match
	TeamA []MatchPlayerInfo
	TeamB []MatchPlayerInfo
}

type PushSubscription struct {
	ID        int
	PlayerID  string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context) ([]User, error)
	UpdateRating(ctx context.Context, id string, rating int) error

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context) error

	// CreateMatch stores a finalized match and its players in one transaction.
	// It returns ErrDuplicateMatch (with the existing id) when the lobby was
	// already recorded.
	CreateMatch(ctx context.Context, match *Match, players []MatchPlayer) (string, error)
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	GetMatchPlayers(ctx context.Context, matchID string) ([]MatchPlayer, error)
	ListMatchesWithPlayers(ctx context.Context, limit int, includeBots bool) ([]MatchWithPlayers, error)

	SavePushSubscription(ctx context.Context, sub *PushSubscription) error
	GetPushSubscriptions(ctx context.Context, playerID string) ([]PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error

	Close() error
}
