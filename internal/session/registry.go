// Package session maps live connections to players and remembers where each
// player is queued or seated so a reconnect inside the grace window resumes
// where it left off.
package session

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
)

// Hub is the part of the broadcast hub the registry manages subscriptions on.
type Hub interface {
	Subscribe(connID, topic string) error
	Unsubscribe(connID, topic string)
	Unregister(connID string)
}

// Leaver is told when a detached session was not resumed in time. It should
// treat the player as having left their queue and lobby.
type Leaver interface {
	SessionExpired(playerID, queueID, lobbyID string)
}

type Session struct {
	ConnectionID string    `json:"connectionId"`
	PlayerID     string    `json:"playerId"`
	QueueID      string    `json:"queueId,omitempty"`
	LobbyID      string    `json:"lobbyId,omitempty"`
	AttachedAt   time.Time `json:"attachedAt"`
	LastSeen     time.Time `json:"lastSeen"`
	DetachedAt   time.Time `json:"detachedAt,omitzero"`
	Live         bool      `json:"live"`
	// Resumed is set on the session returned by Attach when earlier
	// membership was restored.
	Resumed bool `json:"resumed"`
}

type entry struct {
	playerID   string
	connID     string
	live       bool
	attachedAt time.Time
	lastSeen   time.Time
	detachedAt time.Time
	epoch      uint64
	timer      *time.Timer
	queueID    string
	lobbyID    string
}

func (e *entry) session() Session {
	s := Session{
		PlayerID:   e.playerID,
		QueueID:    e.queueID,
		LobbyID:    e.lobbyID,
		AttachedAt: e.attachedAt,
		LastSeen:   e.lastSeen,
		DetachedAt: e.detachedAt,
		Live:       e.live,
	}
	if e.live {
		s.ConnectionID = e.connID
	}
	return s
}

// idle reports whether the entry carries nothing worth keeping.
func (e *entry) idle() bool {
	return !e.live && e.timer == nil && e.queueID == "" && e.lobbyID == ""
}

type Registry struct {
	hub   Hub
	grace time.Duration
	now   func() time.Time

	mu      sync.Mutex
	leaver  Leaver
	players map[string]*entry
	conns   map[string]string
}

// NewRegistry creates a registry. A live session whose last heartbeat is
// older than grace is considered stale and may be replaced by a new
// connection; a detached session is kept for grace before it expires.
func NewRegistry(hub Hub, grace time.Duration) *Registry {
	return &Registry{
		hub:     hub,
		grace:   grace,
		now:     time.Now,
		players: make(map[string]*entry),
		conns:   make(map[string]string),
	}
}

// SetLeaver sets the collaborator notified when a session expires.
func (r *Registry) SetLeaver(l Leaver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaver = l
}

// Attach binds connID to playerID.
func (r *Registry) Attach(connID, playerID string) (Session, error) {
	if connID == "" || playerID == "" {
		return Session{}, errs.New(errs.CodeInvalidCommand, "connection and player are required")
	}
	now := r.now()

	r.mu.Lock()
	e := r.players[playerID]
	var evicted string
	resumed := false
	if e != nil {
		if e.live && e.connID != connID {
			if now.Sub(e.lastSeen) < r.grace {
				r.mu.Unlock()
				return Session{}, errs.ErrDuplicateSession
			}
			evicted = e.connID
			delete(r.conns, e.connID)
		}
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		resumed = e.queueID != "" || e.lobbyID != ""
	} else {
		e = &entry{playerID: playerID}
		r.players[playerID] = e
	}
	if prev, ok := r.conns[connID]; ok && prev != playerID {
		r.dropConnLocked(connID, prev)
	}
	e.connID = connID
	e.live = true
	e.attachedAt = now
	e.lastSeen = now
	e.detachedAt = time.Time{}
	e.epoch++
	r.conns[connID] = playerID
	s := e.session()
	s.Resumed = resumed
	r.mu.Unlock()

	if evicted != "" {
		log.WithFields(log.Fields{"player": playerID, "conn": evicted}).Info("Evicted stale session")
		r.hub.Unregister(evicted)
	}
	if s.LobbyID != "" {
		r.subscribe(connID, broadcast.LobbyTopic(s.LobbyID))
	}
	return s, nil
}

// Detach marks the connection's session as disconnected and starts the
// grace period.
func (r *Registry) Detach(connID string) {
	r.mu.Lock()
	playerID, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	e := r.players[playerID]
	if e == nil || e.connID != connID || !e.live {
		r.mu.Unlock()
		return
	}
	e.live = false
	e.detachedAt = r.now()
	e.epoch++
	epoch := e.epoch

	if e.queueID == "" && e.lobbyID == "" {
		delete(r.players, playerID)
		r.mu.Unlock()
		return
	}
	if r.grace > 0 {
		e.timer = time.AfterFunc(r.grace, func() { r.expire(playerID, epoch) })
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.expire(playerID, epoch)
}

func (r *Registry) expire(playerID string, epoch uint64) {
	r.mu.Lock()
	e := r.players[playerID]
	if e == nil || e.live || e.epoch != epoch {
		r.mu.Unlock()
		return
	}
	delete(r.players, playerID)
	leaver := r.leaver
	queueID, lobbyID := e.queueID, e.lobbyID
	r.mu.Unlock()

	log.WithFields(log.Fields{"player": playerID, "queue": queueID, "lobby": lobbyID}).Info("Session expired")
	if leaver != nil {
		leaver.SessionExpired(playerID, queueID, lobbyID)
	}
}

// Touch records a heartbeat for connID.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.players[r.conns[connID]]; e != nil && e.connID == connID {
		e.lastSeen = r.now()
	}
}

// Get returns the session bound to connID.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.players[r.conns[connID]]
	if e == nil || e.connID != connID || !e.live {
		return Session{}, false
	}
	return e.session(), true
}

// Player returns what the registry knows about playerID, live or not.
func (r *Registry) Player(playerID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.players[playerID]
	if e == nil {
		return Session{}, false
	}
	return e.session(), true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) JoinedQueue(playerID, queueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryLocked(playerID).queueID = queueID
}

func (r *Registry) LeftQueue(playerID, queueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.players[playerID]; e != nil && e.queueID == queueID {
		e.queueID = ""
		r.gcLocked(e)
	}
}

// JoinedLobby records lobby membership and subscribes the player's live
// connection to the lobby topic.
func (r *Registry) JoinedLobby(playerID, lobbyID string) {
	r.mu.Lock()
	e := r.entryLocked(playerID)
	e.lobbyID = lobbyID
	connID := ""
	if e.live {
		connID = e.connID
	}
	r.mu.Unlock()

	if connID != "" {
		r.subscribe(connID, broadcast.LobbyTopic(lobbyID))
	}
}

func (r *Registry) LeftLobby(playerID, lobbyID string) {
	r.mu.Lock()
	e := r.players[playerID]
	if e == nil || e.lobbyID != lobbyID {
		r.mu.Unlock()
		return
	}
	e.lobbyID = ""
	connID := ""
	if e.live {
		connID = e.connID
	}
	r.gcLocked(e)
	r.mu.Unlock()

	if connID != "" {
		r.hub.Unsubscribe(connID, broadcast.LobbyTopic(lobbyID))
	}
}

func (r *Registry) subscribe(connID, topic string) {
	if err := r.hub.Subscribe(connID, topic); err != nil {
		log.WithError(err).WithField("conn", connID).Warn("Could not subscribe session")
	}
}

func (r *Registry) entryLocked(playerID string) *entry {
	e := r.players[playerID]
	if e == nil {
		e = &entry{playerID: playerID}
		r.players[playerID] = e
	}
	return e
}

// gcLocked drops an entry that is neither connected, pending expiry, nor a
// member of anything.
func (r *Registry) gcLocked(e *entry) {
	if e.idle() {
		delete(r.players, e.playerID)
		return
	}
	if !e.live && e.timer != nil && e.queueID == "" && e.lobbyID == "" {
		e.timer.Stop()
		delete(r.players, e.playerID)
	}
}

func (r *Registry) dropConnLocked(connID, playerID string) {
	delete(r.conns, connID)
	if e := r.players[playerID]; e != nil && e.connID == connID {
		e.live = false
		r.gcLocked(e)
	}
}
