package push

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/roster"
)

// Sender delivers a notification to a set of players.
type Sender interface {
	SendToMultipleUsers(ctx context.Context, playerIDs []string, payload NotificationPayload)
}

// Notifier listens to published events and pushes notifications to players
// who need to act: everyone when a lobby forms, and each leader when it is
// their turn to ban.
type Notifier struct {
	sender Sender
	// lobby id -> last turn notified, so repeated state updates for the same
	// turn are not re-sent
	turns map[string]string
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{
		sender: sender,
		turns:  make(map[string]string),
	}
}

// Run starts listening to events from a hub tap.
func (n *Notifier) Run(ctx context.Context, events <-chan broadcast.Message) {
	log.Info("Push notifier started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Push notifier stopped")
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			n.handleEvent(ctx, msg.Payload)
		}
	}
}

func (n *Notifier) handleEvent(ctx context.Context, event broadcast.Event) {
	switch e := event.(type) {
	case lobby.Formed:
		n.handleFormed(ctx, e.Lobby)
	case lobby.StateChanged:
		n.handleStateChanged(ctx, e.Lobby)
	case lobby.BanApplied:
		if e.NextLeader != "" {
			n.notifyTurn(ctx, e.LobbyID, e.NextLeader, len(e.Remaining))
		}
	}
}

func (n *Notifier) handleFormed(ctx context.Context, snap lobby.Snapshot) {
	var humans []string
	for _, p := range snap.Players {
		if !p.Bot {
			humans = append(humans, p.ID)
		}
	}
	log.WithFields(log.Fields{"lobby": snap.ID, "players": len(humans)}).Debug("Sending match found notifications")

	n.sender.SendToMultipleUsers(ctx, humans, NotificationPayload{
		Title: "Match Found! 🎮",
		Body:  "Click to ready up.",
		Icon:  "/static/favicon.ico",
		Badge: "/static/favicon.ico",
		Tag:   "match-found",
		Data: map[string]interface{}{
			"lobbyID": snap.ID,
			"url":     "/",
		},
	})
}

func (n *Notifier) handleStateChanged(ctx context.Context, snap lobby.Snapshot) {
	if snap.Phase.Terminal() {
		delete(n.turns, snap.ID)
		return
	}
	if snap.Phase != lobby.PhaseMapBan || snap.Draft == nil || snap.Draft.Complete() {
		return
	}
	n.notifyTurn(ctx, snap.ID, snap.Draft.CurrentLeader(), len(snap.Draft.Available))
}

func (n *Notifier) notifyTurn(ctx context.Context, lobbyID, leader string, remaining int) {
	if leader == "" || roster.IsBot(leader) {
		return
	}
	key := fmt.Sprintf("%s/%d", leader, remaining)
	if n.turns[lobbyID] == key {
		return
	}
	n.turns[lobbyID] = key

	n.sender.SendToMultipleUsers(ctx, []string{leader}, NotificationPayload{
		Title: "It's Your Turn! 🎯",
		Body:  fmt.Sprintf("Ban a map, %d left in the pool.", remaining),
		Icon:  "/static/favicon.ico",
		Badge: "/static/favicon.ico",
		Tag:   "ban-turn",
		Data: map[string]interface{}{
			"lobbyID": lobbyID,
			"url":     "/",
		},
	})
}
