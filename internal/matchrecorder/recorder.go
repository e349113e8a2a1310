// Package matchrecorder saves finalized lobbies to the database.
package matchrecorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/mapban"
	"github.com/edvart/inhouse-queue/internal/store"
)

// Recorder implements lobby.Recorder on top of a store.
type Recorder struct {
	store store.Store
	newID func() string
}

// New creates a new match recorder.
func New(s store.Store) *Recorder {
	return &Recorder{store: s, newID: uuid.NewString}
}

// CreateMatchRecord stores rec with its players. Storage failures are
// reported as errs.ErrPersistenceUnavailable so the lobby retries them; a
// lobby that was already recorded returns the existing id with
// errs.ErrDuplicateRecord.
func (r *Recorder) CreateMatchRecord(ctx context.Context, rec lobby.MatchRecord) (string, error) {
	match := &store.Match{
		ID:          r.newID(),
		LobbyID:     rec.LobbyID,
		SelectedMap: rec.SelectedMap,
		Bans:        toBanEntries(rec.Bans),
		HasBots:     rec.HasBots,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}

	players := make([]store.MatchPlayer, 0, len(rec.TeamA)+len(rec.TeamB))
	players = appendTeam(players, match.ID, string(mapban.TeamA), rec.TeamA, rec.LeaderA)
	players = appendTeam(players, match.ID, string(mapban.TeamB), rec.TeamB, rec.LeaderB)

	id, err := r.store.CreateMatch(ctx, match, players)
	if errors.Is(err, store.ErrDuplicateMatch) {
		log.WithFields(log.Fields{"lobby": rec.LobbyID, "match": id}).Info("Match already recorded")
		return id, errs.ErrDuplicateRecord
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrPersistenceUnavailable, err)
	}

	log.WithFields(log.Fields{
		"lobby": rec.LobbyID,
		"match": id,
		"map":   rec.SelectedMap,
	}).Info("Recorded match")
	return id, nil
}

func appendTeam(players []store.MatchPlayer, matchID, team string, members []lobby.Player, leader string) []store.MatchPlayer {
	for _, p := range members {
		players = append(players, store.MatchPlayer{
			MatchID:   matchID,
			PlayerID:  p.ID,
			Team:      team,
			WasLeader: p.ID == leader,
			IsBot:     p.Bot,
		})
	}
	return players
}

func toBanEntries(bans []mapban.Ban) []store.BanEntry {
	out := make([]store.BanEntry, len(bans))
	for i, b := range bans {
		out[i] = store.BanEntry{
			Team:     string(b.Team),
			Map:      b.Map,
			PlayerID: b.PlayerID,
			At:       b.At,
			Auto:     b.Auto,
		}
	}
	return out
}
