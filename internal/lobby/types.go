package lobby

import (
	"context"
	"time"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/mapban"
)

type Phase string

const (
	PhaseForming    Phase = "forming"
	PhaseReadyCheck Phase = "ready_check"
	PhaseMapBan     Phase = "map_ban"
	PhaseFinalizing Phase = "finalizing"
	PhaseCancelled  Phase = "cancelled"
	PhaseComplete   Phase = "complete"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseCancelled || p == PhaseComplete
}

type Player struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	AvatarURL string      `json:"avatarUrl,omitempty"`
	Rating    int         `json:"rating"`
	Ready     bool        `json:"ready"`
	Bot       bool        `json:"bot"`
	JoinedAt  time.Time   `json:"joinedAt"`
	Team      mapban.Team `json:"team"`
}

// Snapshot is an immutable copy of a lobby's state.
type Snapshot struct {
	ID            string        `json:"id"`
	QueueID       string        `json:"queueId"`
	Phase         Phase         `json:"phase"`
	Players       []Player      `json:"players"`
	TeamA         []string      `json:"teamA"`
	TeamB         []string      `json:"teamB"`
	Draft         *mapban.State `json:"draft,omitempty"`
	HasBots       bool          `json:"hasBots"`
	CreatedAt     time.Time     `json:"createdAt"`
	ReadyDeadline *time.Time    `json:"readyDeadline,omitempty"`
	TurnDeadline  *time.Time    `json:"turnDeadline,omitempty"`
	MatchID       string        `json:"matchId,omitempty"`
	CancelReason  string        `json:"cancelReason,omitempty"`
	Version       int           `json:"version"`
}

// Member reports whether playerID is on the roster.
func (s Snapshot) Member(playerID string) bool {
	for _, p := range s.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// MatchRecord is what a finalized lobby hands to persistence.
type MatchRecord struct {
	LobbyID     string
	TeamA       []Player
	TeamB       []Player
	LeaderA     string
	LeaderB     string
	SelectedMap string
	Bans        []mapban.Ban
	HasBots     bool
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Recorder persists finalized matches. Implementations return
// errs.ErrPersistenceUnavailable for retryable failures and
// errs.ErrDuplicateRecord (with the existing id) when the lobby was already
// recorded.
type Recorder interface {
	CreateMatchRecord(ctx context.Context, rec MatchRecord) (string, error)
}

// Publisher delivers events to topic subscribers.
type Publisher interface {
	Publish(topic string, event broadcast.Event)
}

// Membership is told when a player stops belonging to a lobby.
type Membership interface {
	LeftLobby(playerID, lobbyID string)
}

// Listener is notified when a player leaves, when a lobby closes and when it
// is evicted. requeue holds players that should go back to the front of the
// queue.
type Listener interface {
	PlayerLeft(lobbyID, playerID string)
	LobbyClosed(lobbyID string, requeue []Player)
	LobbyEvicted(lobbyID string)
}

type Config struct {
	MapPool               []string
	ReadyTimeout          time.Duration // 0 disables
	BanTurnTimeout        time.Duration // 0 disables
	AutoBanMap            string
	LeaderPolicy          mapban.LeaderPolicy
	FirstBanPolicy        mapban.FirstBanPolicy
	FinalizeAttempts      uint64
	FinalizeBackoff       time.Duration
	RetainFor             time.Duration
	MinTeamSize           int
	RequeueOnReadyTimeout bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MapPool:               []string{"Ancient", "Anubis", "Dust2", "Inferno", "Mirage", "Nuke", "Overpass"},
		ReadyTimeout:          30 * time.Second,
		BanTurnTimeout:        20 * time.Second,
		LeaderPolicy:          mapban.LeaderFirstJoined,
		FirstBanPolicy:        mapban.FirstBanLowerRating,
		FinalizeAttempts:      5,
		FinalizeBackoff:       500 * time.Millisecond,
		RetainFor:             2 * time.Minute,
		MinTeamSize:           1,
		RequeueOnReadyTimeout: true,
	}
}
