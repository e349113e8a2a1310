// Package queue holds the waiting pool and forms lobbies from it. A single
// goroutine owns the queue, the lobby directory and the player-to-lobby map;
// everything else talks to it through commands.
package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/roster"
)

// ErrStopped is returned once the manager loop has exited.
var ErrStopped = errors.New("queue manager stopped")

type Entry struct {
	Player   roster.Player `json:"player"`
	JoinedAt time.Time     `json:"joinedAt"`
	Bot      bool          `json:"bot"`
}

type Config struct {
	ID           string
	LobbySize    int
	TickInterval time.Duration // 0 disables the periodic formation check
	Lobby        lobby.Config
}

// Membership is kept informed of where players are so reconnecting sessions
// can be restored.
type Membership interface {
	JoinedQueue(playerID, queueID string)
	LeftQueue(playerID, queueID string)
	JoinedLobby(playerID, lobbyID string)
	LeftLobby(playerID, lobbyID string)
}

type Deps struct {
	Publisher  lobby.Publisher
	Recorder   lobby.Recorder
	Membership Membership
	Now        func() time.Time
	NewID      func() string
}

// View is a read-only copy of the queue and its lobby directory.
type View struct {
	QueueID   string   `json:"queueId"`
	Size      int      `json:"size"`
	LobbySize int      `json:"lobbySize"`
	Entries   []Entry  `json:"entries"`
	Lobbies   []string `json:"lobbies"`
}

type lobbyRef struct {
	lobby   *lobby.Lobby
	players []string
	closed  bool
}

type Manager struct {
	cfg      Config
	pub      lobby.Publisher
	recorder lobby.Recorder
	members  Membership
	now      func() time.Time
	newID    func() string
	log      *log.Entry

	commands chan command
	done     chan struct{}
	ctx      context.Context

	entries     []Entry
	lobbies     map[string]*lobbyRef
	playerLobby map[string]string
}

// NewManager creates a queue manager. Run must be called to process commands.
func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Membership == nil {
		deps.Membership = noMembership{}
	}
	return &Manager{
		cfg:         cfg,
		pub:         deps.Publisher,
		recorder:    deps.Recorder,
		members:     deps.Membership,
		now:         deps.Now,
		newID:       deps.NewID,
		log:         log.WithField("queue", cfg.ID),
		commands:    make(chan command, 100),
		done:        make(chan struct{}),
		entries:     []Entry{},
		lobbies:     make(map[string]*lobbyRef),
		playerLobby: make(map[string]string),
	}
}

// ID returns the queue id.
func (m *Manager) ID() string { return m.cfg.ID }

// Run processes commands until ctx is cancelled. Lobbies formed by the
// manager share ctx and stop with it.
func (m *Manager) Run(ctx context.Context) {
	m.ctx = ctx
	defer close(m.done)

	var tick <-chan time.Time
	if m.cfg.TickInterval > 0 {
		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.log.WithField("lobby_size", m.cfg.LobbySize).Info("Queue manager started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Queue manager shutting down")
			return
		case cmd := <-m.commands:
			m.handleCommand(cmd)
		case <-tick:
			m.formLobbies()
		}
	}
}

func (m *Manager) Join(ctx context.Context, p roster.Player) error {
	res, err := request(ctx, m, func(r chan error) command { return joinQueue{Player: p, Response: r} })
	if err != nil {
		return err
	}
	return res
}

// Leave removes the player from the queue. Leaving when not queued is not an
// error.
func (m *Manager) Leave(ctx context.Context, playerID string) error {
	res, err := request(ctx, m, func(r chan error) command { return leaveQueue{PlayerID: playerID, Response: r} })
	if err != nil {
		return err
	}
	return res
}

// Kick removes a queued player on behalf of an admin.
func (m *Manager) Kick(ctx context.Context, adminID, playerID string) error {
	res, err := request(ctx, m, func(r chan error) command {
		return kickPlayer{AdminID: adminID, PlayerID: playerID, Response: r}
	})
	if err != nil {
		return err
	}
	return res
}

// FillBots adds count placeholder players, or enough to complete the next
// lobby when count <= 0. It returns the number of bots added.
func (m *Manager) FillBots(ctx context.Context, adminID string, count int) (int, error) {
	res, err := request(ctx, m, func(r chan fillResult) command {
		return fillBots{AdminID: adminID, Count: count, Response: r}
	})
	if err != nil {
		return 0, err
	}
	return res.Added, res.Err
}

// Lookup returns a lobby that is active or still retained after closing.
func (m *Manager) Lookup(ctx context.Context, lobbyID string) (*lobby.Lobby, error) {
	lb, err := request(ctx, m, func(r chan *lobby.Lobby) command { return lookupLobby{LobbyID: lobbyID, Response: r} })
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, errs.ErrLobbyNotFound
	}
	return lb, nil
}

// LobbyOf returns the non-terminal lobby the player belongs to.
func (m *Manager) LobbyOf(ctx context.Context, playerID string) (*lobby.Lobby, error) {
	lb, err := request(ctx, m, func(r chan *lobby.Lobby) command { return playerLobby{PlayerID: playerID, Response: r} })
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, errs.ErrLobbyNotFound
	}
	return lb, nil
}

// Snapshot returns the current queue view.
func (m *Manager) Snapshot(ctx context.Context) (View, error) {
	return request(ctx, m, func(r chan View) command { return getView{Response: r} })
}

// PlayerLeft is called by a lobby when a member leaves before it closes.
func (m *Manager) PlayerLeft(lobbyID, playerID string) {
	m.post(playerLeftLobby{LobbyID: lobbyID, PlayerID: playerID})
}

// LobbyClosed is called by a lobby when it reaches a terminal phase.
func (m *Manager) LobbyClosed(lobbyID string, requeue []lobby.Player) {
	m.post(lobbyClosed{LobbyID: lobbyID, Requeue: requeue})
}

// LobbyEvicted is called by a lobby once its retention period ends.
func (m *Manager) LobbyEvicted(lobbyID string) {
	m.post(lobbyEvicted{LobbyID: lobbyID})
}

func request[T any](ctx context.Context, m *Manager, build func(chan T) command) (T, error) {
	var zero T
	resp := make(chan T, 1)
	select {
	case m.commands <- build(resp):
	case <-m.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-resp:
		return v, nil
	case <-m.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (m *Manager) post(cmd command) {
	select {
	case m.commands <- cmd:
	case <-m.done:
	}
}

func (m *Manager) handleCommand(cmd command) {
	switch cmd := cmd.(type) {
	case joinQueue:
		cmd.Response <- m.handleJoin(cmd.Player)
	case leaveQueue:
		cmd.Response <- m.handleLeave(cmd.PlayerID)
	case kickPlayer:
		cmd.Response <- m.handleKick(cmd.AdminID, cmd.PlayerID)
	case fillBots:
		added, err := m.handleFillBots(cmd.AdminID, cmd.Count)
		cmd.Response <- fillResult{Added: added, Err: err}
	case lookupLobby:
		var lb *lobby.Lobby
		if ref := m.lobbies[cmd.LobbyID]; ref != nil {
			lb = ref.lobby
		}
		cmd.Response <- lb
	case playerLobby:
		var lb *lobby.Lobby
		if ref := m.lobbies[m.playerLobby[cmd.PlayerID]]; ref != nil && !ref.closed {
			lb = ref.lobby
		}
		cmd.Response <- lb
	case getView:
		cmd.Response <- m.view()
	case playerLeftLobby:
		if m.playerLobby[cmd.PlayerID] == cmd.LobbyID {
			delete(m.playerLobby, cmd.PlayerID)
		}
	case lobbyClosed:
		m.handleLobbyClosed(cmd.LobbyID, cmd.Requeue)
	case lobbyEvicted:
		m.handleLobbyEvicted(cmd.LobbyID)
	}
}

func (m *Manager) handleJoin(p roster.Player) error {
	if p.ID == "" {
		return errs.New(errs.CodeInvalidCommand, "player id is required")
	}
	if m.indexOf(p.ID) >= 0 || m.playerLobby[p.ID] != "" {
		return errs.ErrAlreadyQueued
	}

	m.entries = append(m.entries, Entry{Player: p, JoinedAt: m.now()})
	m.members.JoinedQueue(p.ID, m.cfg.ID)
	m.log.WithField("player", p.ID).Infof("Player %s joined queue (%d/%d)", p.Name, len(m.entries), m.cfg.LobbySize)

	m.publishSize()
	m.formLobbies()
	return nil
}

func (m *Manager) handleLeave(playerID string) error {
	if !m.remove(playerID) {
		return nil
	}
	m.members.LeftQueue(playerID, m.cfg.ID)
	m.log.WithField("player", playerID).Infof("Player left queue (%d/%d)", len(m.entries), m.cfg.LobbySize)
	m.publishSize()
	return nil
}

func (m *Manager) handleKick(adminID, playerID string) error {
	if !m.remove(playerID) {
		return errs.ErrNotQueued
	}
	m.members.LeftQueue(playerID, m.cfg.ID)
	m.log.WithFields(log.Fields{"admin": adminID, "player": playerID}).Warn("Admin kicked player from queue")
	m.publishSize()
	return nil
}

func (m *Manager) handleFillBots(adminID string, count int) (int, error) {
	var humans []Entry
	for _, e := range m.entries {
		if !e.Bot {
			humans = append(humans, e)
		}
	}
	if len(humans) == 0 {
		return 0, errs.New(errs.CodeInvalidCommand, "bots can only fill around queued players")
	}

	if count <= 0 {
		count = m.cfg.LobbySize - len(m.entries)%m.cfg.LobbySize
	}
	rating := roster.DefaultRating
	if avg := AverageRating(humans); avg > 0 {
		rating = int(avg + 0.5)
	}

	now := m.now()
	for i := 0; i < count; i++ {
		id := roster.BotPrefix + uuid.NewString()[:8]
		m.entries = append(m.entries, Entry{
			Player:   roster.Player{ID: id, Name: fmt.Sprintf("Bot %d", i+1), Rating: rating},
			JoinedAt: now,
			Bot:      true,
		})
	}
	m.log.WithFields(log.Fields{"admin": adminID, "bots": count}).Warn("Admin filled queue with bots")

	m.publishSize()
	m.formLobbies()
	return count, nil
}

// formLobbies takes the oldest LobbySize entries for as many lobbies as the
// queue can fill.
func (m *Manager) formLobbies() {
	size := m.cfg.LobbySize
	formed := false
	for size > 0 && len(m.entries) >= size {
		group := slices.Clone(m.entries[:size])
		teamA, teamB := SnakeDraft(group)
		id := m.newID()

		lb, err := lobby.New(id, m.cfg.ID, toLobbyPlayers(teamA), toLobbyPlayers(teamB), m.cfg.Lobby, lobby.Deps{
			Publisher:  m.pub,
			Recorder:   m.recorder,
			Membership: m.members,
			Listener:   m,
			Now:        m.now,
		})
		if err != nil {
			m.log.WithError(err).Error("Could not form lobby")
			return
		}

		m.entries = slices.Clone(m.entries[size:])
		ref := &lobbyRef{lobby: lb}
		for _, e := range group {
			ref.players = append(ref.players, e.Player.ID)
			m.playerLobby[e.Player.ID] = id
			if !e.Bot {
				m.members.LeftQueue(e.Player.ID, m.cfg.ID)
				m.members.JoinedLobby(e.Player.ID, id)
			}
		}
		m.lobbies[id] = ref

		m.log.WithFields(log.Fields{
			"lobby":  id,
			"avg_a":  AverageRating(teamA),
			"avg_b":  AverageRating(teamB),
			"queued": len(m.entries),
		}).Info("Lobby formed")

		m.pub.Publish(broadcast.LobbyTopic(id), lobby.Formed{Lobby: lb.Initial()})
		lb.Start(m.ctx)
		formed = true
	}
	if formed {
		m.publishSize()
	}
}

func (m *Manager) handleLobbyClosed(lobbyID string, requeue []lobby.Player) {
	ref := m.lobbies[lobbyID]
	if ref == nil || ref.closed {
		return
	}
	ref.closed = true
	for _, id := range ref.players {
		if m.playerLobby[id] == lobbyID {
			delete(m.playerLobby, id)
		}
	}

	var front []Entry
	for _, p := range requeue {
		if p.Bot || m.indexOf(p.ID) >= 0 || m.playerLobby[p.ID] != "" {
			continue
		}
		front = append(front, Entry{
			Player:   roster.Player{ID: p.ID, Name: p.Name, AvatarURL: p.AvatarURL, Rating: p.Rating},
			JoinedAt: p.JoinedAt,
		})
		m.members.JoinedQueue(p.ID, m.cfg.ID)
	}
	if len(front) > 0 {
		m.entries = append(front, m.entries...)
		m.log.WithFields(log.Fields{"lobby": lobbyID, "players": len(front)}).Info("Returned players to front of queue")
	}

	m.publishSize()
	m.formLobbies()
}

func (m *Manager) handleLobbyEvicted(lobbyID string) {
	delete(m.lobbies, lobbyID)
	if f, ok := m.pub.(interface{ ForgetTopic(string) }); ok {
		f.ForgetTopic(broadcast.LobbyTopic(lobbyID))
	}
}

func (m *Manager) publishSize() {
	m.pub.Publish(broadcast.QueueTopic(m.cfg.ID), SizeChanged{
		QueueID:   m.cfg.ID,
		Size:      len(m.entries),
		LobbySize: m.cfg.LobbySize,
		Entries:   slices.Clone(m.entries),
	})
}

func (m *Manager) view() View {
	v := View{
		QueueID:   m.cfg.ID,
		Size:      len(m.entries),
		LobbySize: m.cfg.LobbySize,
		Entries:   slices.Clone(m.entries),
		Lobbies:   make([]string, 0, len(m.lobbies)),
	}
	for id := range m.lobbies {
		v.Lobbies = append(v.Lobbies, id)
	}
	sort.Strings(v.Lobbies)
	return v
}

func (m *Manager) indexOf(playerID string) int {
	return slices.IndexFunc(m.entries, func(e Entry) bool { return e.Player.ID == playerID })
}

func (m *Manager) remove(playerID string) bool {
	i := m.indexOf(playerID)
	if i < 0 {
		return false
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	return true
}

func toLobbyPlayers(entries []Entry) []lobby.Player {
	out := make([]lobby.Player, len(entries))
	for i, e := range entries {
		out[i] = lobby.Player{
			ID:        e.Player.ID,
			Name:      e.Player.Name,
			AvatarURL: e.Player.AvatarURL,
			Rating:    e.Player.Rating,
			Bot:       e.Bot,
			JoinedAt:  e.JoinedAt,
		}
	}
	return out
}

type noMembership struct{}

func (noMembership) JoinedQueue(string, string) {}
func (noMembership) LeftQueue(string, string)   {}
func (noMembership) JoinedLobby(string, string) {}
func (noMembership) LeftLobby(string, string)   {}
