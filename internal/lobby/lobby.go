// Package lobby runs the per-lobby state machine: ready check, map-ban draft
// and match finalization. Each lobby owns its state on a single goroutine and
// is driven through its inbox.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/mapban"
)

// Deps are the collaborators a lobby talks to. Publisher and Recorder are
// required.
type Deps struct {
	Publisher  Publisher
	Recorder   Recorder
	Membership Membership
	Listener   Listener
	Now        func() time.Time
}

type Lobby struct {
	id      string
	queueID string
	cfg     Config
	deps    Deps
	now     func() time.Time
	log     *log.Entry
	initial Snapshot

	inbox    chan msg
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	ctx      context.Context

	// Owned by the run loop.
	phase         Phase
	players       []Player
	rosterSize    int
	departed      int
	hasBots       bool
	draft         *mapban.State
	generation    int
	turnSeq       int
	readyTimer    *time.Timer
	turnTimer     *time.Timer
	readyDeadline time.Time
	turnDeadline  time.Time
	matchID       string
	cancelReason  string
	createdAt     time.Time
	version       int
}

// New builds a lobby with a frozen roster. The lobby does nothing until
// Start is called.
func New(id, queueID string, teamA, teamB []Player, cfg Config, deps Deps) (*Lobby, error) {
	if deps.Publisher == nil || deps.Recorder == nil {
		return nil, errors.New("lobby needs a publisher and a recorder")
	}
	if len(cfg.MapPool) == 0 {
		return nil, errors.New("lobby needs a map pool")
	}
	if len(teamA) == 0 || len(teamB) == 0 {
		return nil, errors.New("lobby needs players on both teams")
	}
	if d := len(teamA) - len(teamB); d > 1 || d < -1 {
		return nil, fmt.Errorf("teams are unbalanced: %d vs %d", len(teamA), len(teamB))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	players := make([]Player, 0, len(teamA)+len(teamB))
	seen := make(map[string]bool, cap(players))
	hasBots := false
	for _, side := range []struct {
		team    mapban.Team
		members []Player
	}{{mapban.TeamA, teamA}, {mapban.TeamB, teamB}} {
		for _, p := range side.members {
			if p.ID == "" || seen[p.ID] {
				return nil, fmt.Errorf("invalid or duplicate player id %q", p.ID)
			}
			seen[p.ID] = true
			p.Team = side.team
			p.Ready = p.Bot
			hasBots = hasBots || p.Bot
			players = append(players, p)
		}
	}

	l := &Lobby{
		id:         id,
		queueID:    queueID,
		cfg:        cfg,
		deps:       deps,
		now:        deps.Now,
		log:        log.WithFields(log.Fields{"lobby": id, "queue": queueID}),
		inbox:      make(chan msg, 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		phase:      PhaseForming,
		players:    players,
		rosterSize: len(players),
		hasBots:    hasBots,
		createdAt:  deps.Now(),
	}
	l.initial = l.snapshot()
	return l, nil
}

// ID returns the lobby id.
func (l *Lobby) ID() string { return l.id }

// Initial returns the roster as it was frozen at construction.
func (l *Lobby) Initial() Snapshot { return l.initial }

// Done is closed once the lobby loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Start runs the lobby loop until ctx is cancelled, Stop is called or the
// lobby is evicted after reaching a terminal phase.
func (l *Lobby) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stop terminates the loop without notifying anyone.
func (l *Lobby) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// MarkReady records playerID as ready. Repeating it is a no-op.
func (l *Lobby) MarkReady(ctx context.Context, playerID string) error {
	return l.call(ctx, func(r chan error) msg { return markReady{PlayerID: playerID, Response: r} })
}

// ReadyAll marks every member ready. Privileged.
func (l *Lobby) ReadyAll(ctx context.Context, adminID string) error {
	return l.call(ctx, func(r chan error) msg { return readyAll{AdminID: adminID, Response: r} })
}

// BanMap bans mapName on behalf of the leader whose turn it is.
func (l *Lobby) BanMap(ctx context.Context, playerID, mapName string) error {
	return l.call(ctx, func(r chan error) msg { return banMap{PlayerID: playerID, Map: mapName, Response: r} })
}

// Leave removes playerID from the roster and its team.
func (l *Lobby) Leave(ctx context.Context, playerID string) error {
	return l.call(ctx, func(r chan error) msg { return leave{PlayerID: playerID, Response: r} })
}

// ForceCancel closes the lobby from any non-terminal phase. Privileged.
func (l *Lobby) ForceCancel(ctx context.Context, adminID, reason string) error {
	return l.call(ctx, func(r chan error) msg { return forceCancel{AdminID: adminID, Reason: reason, Response: r} })
}

// Snapshot returns the current state.
func (l *Lobby) Snapshot(ctx context.Context) (Snapshot, error) {
	resp := make(chan Snapshot, 1)
	select {
	case l.inbox <- getSnapshot{Response: resp}:
	case <-l.done:
		return Snapshot{}, errs.ErrLobbyClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-l.done:
		return Snapshot{}, errs.ErrLobbyClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (l *Lobby) call(ctx context.Context, build func(chan error) msg) error {
	resp := make(chan error, 1)
	select {
	case l.inbox <- build(resp):
	case <-l.done:
		return errs.ErrLobbyClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-l.done:
		select {
		case err := <-resp:
			return err
		default:
			return errs.ErrLobbyClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers an internal message from a timer or worker goroutine.
func (l *Lobby) post(m msg) {
	select {
	case l.inbox <- m:
	case <-l.done:
	}
}

func (l *Lobby) run(ctx context.Context) {
	l.ctx = ctx
	defer l.shutdown()

	l.beginReadyCheck()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case m := <-l.inbox:
			if _, ok := m.(evict); ok {
				l.log.Debug("Lobby evicted")
				if l.deps.Listener != nil {
					l.deps.Listener.LobbyEvicted(l.id)
				}
				return
			}
			l.handle(m)
		}
	}
}

func (l *Lobby) shutdown() {
	l.stopTimers()
	close(l.done)
}

func (l *Lobby) handle(m msg) {
	switch m := m.(type) {
	case markReady:
		m.Response <- l.handleMarkReady(m.PlayerID)
	case readyAll:
		m.Response <- l.handleReadyAll(m.AdminID)
	case banMap:
		m.Response <- l.handleBanMap(m.PlayerID, m.Map)
	case leave:
		m.Response <- l.handleLeave(m.PlayerID)
	case forceCancel:
		m.Response <- l.handleForceCancel(m.AdminID, m.Reason)
	case getSnapshot:
		m.Response <- l.snapshot()
	case readyTimeout:
		l.handleReadyTimeout(m)
	case turnTimeout:
		l.handleTurnTimeout(m)
	case finalizeResult:
		l.handleFinalizeResult(m)
	}
}

func (l *Lobby) beginReadyCheck() {
	l.phase = PhaseReadyCheck
	l.generation++
	if l.cfg.ReadyTimeout > 0 {
		gen := l.generation
		l.readyDeadline = l.now().Add(l.cfg.ReadyTimeout)
		l.readyTimer = time.AfterFunc(l.cfg.ReadyTimeout, func() {
			l.post(readyTimeout{Generation: gen})
		})
	}
	l.log.WithField("players", len(l.players)).Info("Lobby started ready check")

	if !l.commit() {
		return
	}
	if l.allReady() {
		l.beginMapBan()
	}
}

func (l *Lobby) handleMarkReady(playerID string) error {
	if l.phase.Terminal() {
		return errs.ErrLobbyClosed
	}
	p := l.player(playerID)
	if p == nil {
		return errs.ErrNotAMember
	}
	if p.Ready {
		return nil
	}

	p.Ready = true
	l.log.WithField("player", playerID).Infof("Player ready (%d/%d)", l.readyCount(), len(l.players))
	if !l.commit() {
		return nil
	}
	if l.allReady() {
		l.beginMapBan()
	}
	return nil
}

func (l *Lobby) handleReadyAll(adminID string) error {
	if l.phase.Terminal() {
		return errs.ErrLobbyClosed
	}
	if l.phase != PhaseReadyCheck {
		return errs.New(errs.CodeInvalidCommand, "lobby is not in ready check")
	}

	l.log.WithField("admin", adminID).Warn("Admin forced all players ready")
	for i := range l.players {
		l.players[i].Ready = true
	}
	if l.commit() {
		l.beginMapBan()
	}
	return nil
}

func (l *Lobby) handleReadyTimeout(m readyTimeout) {
	if l.phase != PhaseReadyCheck || m.Generation != l.generation {
		return // stale
	}

	var requeue []Player
	var missing []string
	for _, p := range l.players {
		switch {
		case !p.Ready:
			missing = append(missing, p.ID)
		case !p.Bot && l.cfg.RequeueOnReadyTimeout:
			requeue = append(requeue, p)
		}
	}
	l.log.WithField("missing", missing).Info("Ready check timed out")
	l.cancel("ready check timed out", requeue)
}

func (l *Lobby) beginMapBan() {
	l.stopReadyTimer()
	l.generation++

	leaderA := mapban.SelectLeader(l.candidates(mapban.TeamA), l.cfg.LeaderPolicy)
	leaderB := mapban.SelectLeader(l.candidates(mapban.TeamB), l.cfg.LeaderPolicy)
	first := mapban.FirstTeam(l.cfg.FirstBanPolicy, l.id, l.avgRating(mapban.TeamA), l.avgRating(mapban.TeamB))

	draft, err := mapban.New(l.cfg.MapPool, leaderA, leaderB, first)
	if err != nil {
		l.log.WithError(err).Error("Could not start map ban")
		l.cancel("internal error: map ban could not start", nil)
		return
	}
	l.draft = &draft
	l.phase = PhaseMapBan
	l.armTurn()

	l.log.WithFields(log.Fields{
		"leader_a": leaderA,
		"leader_b": leaderB,
		"first":    first,
	}).Info("Map ban started")

	if l.commit() {
		l.settleDraft()
	}
}

func (l *Lobby) handleBanMap(playerID, mapName string) error {
	if l.phase != PhaseMapBan {
		return errs.ErrDraftNotActive
	}
	next, err := l.draft.Ban(playerID, mapName, l.now())
	if err != nil {
		return err
	}

	l.log.WithFields(log.Fields{"player": playerID, "map": mapName}).Info("Map banned")
	if l.recordBan(next, next.History[len(next.History)-1]) {
		l.settleDraft()
	}
	return nil
}

func (l *Lobby) handleTurnTimeout(m turnTimeout) {
	if l.phase != PhaseMapBan || m.Seq != l.turnSeq || m.BanCount != l.draft.BanCount() {
		return // stale
	}

	next, ban, err := l.draft.AutoBan(l.now(), l.cfg.AutoBanMap)
	if err != nil {
		l.log.WithError(err).Error("Auto-ban failed")
		l.cancel("internal error: auto-ban failed", nil)
		return
	}
	l.log.WithFields(log.Fields{
		"leader": l.draft.CurrentLeader(),
		"map":    ban.Map,
	}).Info("Leader failed to ban in time, auto-banned")
	if l.recordBan(next, ban) {
		l.settleDraft()
	}
}

// recordBan stores an accepted ban, re-arms the turn timer and publishes.
func (l *Lobby) recordBan(next mapban.State, ban mapban.Ban) bool {
	l.draft = &next
	l.armTurn()

	ev := BanApplied{LobbyID: l.id, Ban: ban, Remaining: slices.Clone(next.Available)}
	if !next.Complete() {
		ev.NextTeam = next.Turn
		ev.NextLeader = next.CurrentLeader()
	}
	l.publish(ev)
	return l.commit()
}

// settleDraft bans for bot leaders and finalizes a completed draft.
func (l *Lobby) settleDraft() {
	for l.phase == PhaseMapBan && !l.draft.Complete() && l.isBot(l.draft.CurrentLeader()) {
		next, ban, err := l.draft.AutoBan(l.now(), l.cfg.AutoBanMap)
		if err != nil {
			l.log.WithError(err).Error("Auto-ban failed")
			l.cancel("internal error: auto-ban failed", nil)
			return
		}
		l.log.WithField("map", ban.Map).Debug("Auto-banned for bot leader")
		if !l.recordBan(next, ban) {
			return
		}
	}
	if l.phase == PhaseMapBan && l.draft.Complete() {
		l.beginFinalize()
	}
}

func (l *Lobby) armTurn() {
	l.stopTurnTimer()
	l.turnDeadline = time.Time{}
	if l.draft.Complete() || l.cfg.BanTurnTimeout <= 0 || l.isBot(l.draft.CurrentLeader()) {
		return
	}

	l.turnSeq++
	seq, count := l.turnSeq, l.draft.BanCount()
	l.turnDeadline = l.now().Add(l.cfg.BanTurnTimeout)
	l.turnTimer = time.AfterFunc(l.cfg.BanTurnTimeout, func() {
		l.post(turnTimeout{Seq: seq, BanCount: count})
	})
}

func (l *Lobby) beginFinalize() {
	l.stopTimers()
	l.turnDeadline = time.Time{}
	l.phase = PhaseFinalizing

	l.log.WithField("map", l.draft.Selected).Info("Draft complete, recording match")
	l.publish(DraftComplete{
		LobbyID:     l.id,
		SelectedMap: l.draft.Selected,
		Bans:        slices.Clone(l.draft.History),
	})
	if !l.commit() {
		return
	}

	go l.persist(l.ctx, l.matchRecord())
}

// persist runs off the loop and reports back through the inbox.
func (l *Lobby) persist(ctx context.Context, rec MatchRecord) {
	attempts := l.cfg.FinalizeAttempts
	if attempts == 0 {
		attempts = 1
	}
	base := l.cfg.FinalizeBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))

	var matchID string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		id, err := l.deps.Recorder.CreateMatchRecord(ctx, rec)
		switch {
		case err == nil:
			matchID = id
			return nil
		case errors.Is(err, errs.ErrDuplicateRecord):
			l.log.WithField("match", id).Info("Match already recorded")
			matchID = id
			return nil
		case errors.Is(err, errs.ErrPersistenceUnavailable):
			l.log.WithError(err).WithField("attempt", attempt).Warn("Recording match failed")
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	l.post(finalizeResult{MatchID: matchID, Err: err})
}

func (l *Lobby) handleFinalizeResult(m finalizeResult) {
	if l.phase != PhaseFinalizing {
		l.log.WithField("phase", l.phase).Warn("Ignoring late finalize result")
		return
	}
	if m.Err != nil {
		l.log.WithError(m.Err).Error("Giving up on recording match")
		l.cancel("match could not be recorded: "+errs.MessageOf(m.Err), nil)
		return
	}

	l.matchID = m.MatchID
	l.phase = PhaseComplete
	l.log.WithField("match", m.MatchID).Info("Lobby complete")
	l.commit()
	l.close(nil)
}

func (l *Lobby) handleLeave(playerID string) error {
	switch {
	case l.phase.Terminal():
		return errs.ErrLobbyClosed
	case l.phase == PhaseFinalizing:
		return errs.ErrLobbyLocked
	}
	idx := slices.IndexFunc(l.players, func(p Player) bool { return p.ID == playerID })
	if idx < 0 {
		return errs.ErrNotAMember
	}

	gone := l.players[idx]
	l.players = slices.Delete(l.players, idx, idx+1)
	l.departed++
	if !gone.Bot && l.deps.Membership != nil {
		l.deps.Membership.LeftLobby(gone.ID, l.id)
	}
	if l.deps.Listener != nil {
		l.deps.Listener.PlayerLeft(l.id, gone.ID)
	}
	l.log.WithFields(log.Fields{"player": playerID, "team": gone.Team}).Info("Player left lobby")

	if reason := l.viability(); reason != "" {
		l.cancel(reason, nil)
		return nil
	}

	if l.phase == PhaseMapBan && l.draft.Leader(gone.Team) == gone.ID {
		successor := l.successor(gone.Team)
		next := l.draft.ReplaceLeader(gone.Team, successor)
		l.draft = &next
		l.log.WithFields(log.Fields{"team": gone.Team, "leader": successor}).Info("Draft leadership passed on")
		if l.draft.Turn == gone.Team {
			l.armTurn()
		}
	}

	if !l.commit() {
		return nil
	}
	switch l.phase {
	case PhaseReadyCheck:
		if l.allReady() {
			l.beginMapBan()
		}
	case PhaseMapBan:
		l.settleDraft()
	}
	return nil
}

func (l *Lobby) handleForceCancel(adminID, reason string) error {
	if l.phase.Terminal() {
		return errs.ErrLobbyClosed
	}
	if reason == "" {
		reason = "cancelled by an administrator"
	}
	l.log.WithFields(log.Fields{"admin": adminID, "phase": l.phase}).Warn("Admin cancelled lobby")
	l.cancel(reason, nil)
	return nil
}

// viability returns a cancellation reason when the remaining roster can no
// longer play.
func (l *Lobby) viability() string {
	humans, a, b := 0, 0, 0
	for _, p := range l.players {
		if !p.Bot {
			humans++
		}
		if p.Team == mapban.TeamA {
			a++
		} else {
			b++
		}
	}
	minSize := max(l.cfg.MinTeamSize, 1)

	switch {
	case humans == 0:
		return "all players left"
	case l.departed*2 >= l.rosterSize:
		return "too many players left"
	case a < minSize:
		return "team A has too few players"
	case b < minSize:
		return "team B has too few players"
	case a-b > 1 || b-a > 1:
		return "teams are unbalanced"
	}
	return ""
}

// successor is the lowest remaining id on team, preferring humans.
func (l *Lobby) successor(team mapban.Team) string {
	var best *Player
	for i := range l.players {
		p := &l.players[i]
		if p.Team != team {
			continue
		}
		if best == nil || (best.Bot && !p.Bot) || (best.Bot == p.Bot && p.ID < best.ID) {
			best = p
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

func (l *Lobby) cancel(reason string, requeue []Player) {
	if l.phase.Terminal() {
		return
	}
	l.stopTimers()
	l.readyDeadline = time.Time{}
	l.turnDeadline = time.Time{}
	l.phase = PhaseCancelled
	l.cancelReason = reason

	l.log.WithField("reason", reason).Warn("Lobby cancelled")
	l.publish(Cancelled{LobbyID: l.id, Reason: reason})
	l.publishState()
	l.close(requeue)
}

// close releases members and schedules eviction.
func (l *Lobby) close(requeue []Player) {
	if l.deps.Membership != nil {
		for _, p := range l.players {
			if !p.Bot {
				l.deps.Membership.LeftLobby(p.ID, l.id)
			}
		}
	}
	if l.deps.Listener != nil {
		l.deps.Listener.LobbyClosed(l.id, requeue)
	}
	time.AfterFunc(max(l.cfg.RetainFor, 0), func() { l.post(evict{}) })
}

// commit validates invariants and publishes the new state. An invariant
// violation cancels the lobby instead.
func (l *Lobby) commit() bool {
	if err := l.validate(); err != nil {
		l.log.WithError(err).Error("Lobby invariant violated")
		l.cancel("internal error: "+err.Error(), nil)
		return false
	}
	l.publishState()
	return true
}

func (l *Lobby) publishState() {
	l.version++
	l.publish(StateChanged{Lobby: l.snapshot()})
}

func (l *Lobby) publish(e broadcast.Event) {
	l.deps.Publisher.Publish(broadcast.LobbyTopic(l.id), e)
}

func (l *Lobby) validate() error {
	seen := make(map[string]bool, len(l.players))
	a, b := 0, 0
	for _, p := range l.players {
		if seen[p.ID] {
			return fmt.Errorf("player %s appears twice", p.ID)
		}
		seen[p.ID] = true
		switch p.Team {
		case mapban.TeamA:
			a++
		case mapban.TeamB:
			b++
		default:
			return fmt.Errorf("player %s has no team", p.ID)
		}
	}
	if !l.phase.Terminal() && (a-b > 1 || b-a > 1) {
		return fmt.Errorf("teams unbalanced: %d vs %d", a, b)
	}
	if l.draft != nil && !l.phase.Terminal() {
		if err := l.draft.Validate(); err != nil {
			return err
		}
		for _, team := range []mapban.Team{mapban.TeamA, mapban.TeamB} {
			leader := l.player(l.draft.Leader(team))
			if leader == nil || leader.Team != team {
				return fmt.Errorf("team %s leader %q is not on the team", team, l.draft.Leader(team))
			}
		}
	}
	return nil
}

func (l *Lobby) snapshot() Snapshot {
	s := Snapshot{
		ID:           l.id,
		QueueID:      l.queueID,
		Phase:        l.phase,
		Players:      slices.Clone(l.players),
		TeamA:        []string{},
		TeamB:        []string{},
		HasBots:      l.hasBots,
		CreatedAt:    l.createdAt,
		MatchID:      l.matchID,
		CancelReason: l.cancelReason,
		Version:      l.version,
	}
	for _, p := range l.players {
		if p.Team == mapban.TeamA {
			s.TeamA = append(s.TeamA, p.ID)
		} else {
			s.TeamB = append(s.TeamB, p.ID)
		}
	}
	if l.draft != nil {
		d := l.draft.Clone()
		s.Draft = &d
	}
	if !l.readyDeadline.IsZero() {
		t := l.readyDeadline
		s.ReadyDeadline = &t
	}
	if !l.turnDeadline.IsZero() {
		t := l.turnDeadline
		s.TurnDeadline = &t
	}
	return s
}

func (l *Lobby) matchRecord() MatchRecord {
	rec := MatchRecord{
		LobbyID:     l.id,
		LeaderA:     l.draft.LeaderA,
		LeaderB:     l.draft.LeaderB,
		SelectedMap: l.draft.Selected,
		Bans:        slices.Clone(l.draft.History),
		HasBots:     l.hasBots,
		CreatedAt:   l.createdAt,
		CompletedAt: l.now(),
	}
	for _, p := range l.players {
		if p.Team == mapban.TeamA {
			rec.TeamA = append(rec.TeamA, p)
		} else {
			rec.TeamB = append(rec.TeamB, p)
		}
	}
	return rec
}

func (l *Lobby) player(id string) *Player {
	for i := range l.players {
		if l.players[i].ID == id {
			return &l.players[i]
		}
	}
	return nil
}

func (l *Lobby) isBot(id string) bool {
	p := l.player(id)
	return p != nil && p.Bot
}

func (l *Lobby) allReady() bool {
	return l.readyCount() == len(l.players)
}

func (l *Lobby) readyCount() int {
	n := 0
	for _, p := range l.players {
		if p.Ready {
			n++
		}
	}
	return n
}

func (l *Lobby) candidates(team mapban.Team) []mapban.Candidate {
	var out []mapban.Candidate
	for _, p := range l.players {
		if p.Team == team {
			out = append(out, mapban.Candidate{ID: p.ID, Rating: p.Rating, JoinedAt: p.JoinedAt, Bot: p.Bot})
		}
	}
	return out
}

func (l *Lobby) avgRating(team mapban.Team) float64 {
	sum, n := 0, 0
	for _, p := range l.players {
		if p.Team == team {
			sum += p.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (l *Lobby) stopReadyTimer() {
	if l.readyTimer != nil {
		l.readyTimer.Stop()
		l.readyTimer = nil
	}
	l.readyDeadline = time.Time{}
}

func (l *Lobby) stopTurnTimer() {
	if l.turnTimer != nil {
		l.turnTimer.Stop()
		l.turnTimer = nil
	}
}

func (l *Lobby) stopTimers() {
	l.stopReadyTimer()
	l.stopTurnTimer()
}
