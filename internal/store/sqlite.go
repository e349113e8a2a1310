package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between the recorder and auth handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			avatar_url TEXT,
			rating INTEGER NOT NULL DEFAULT 1000,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			lobby_id TEXT NOT NULL UNIQUE,
			selected_map TEXT NOT NULL,
			ban_history BLOB,
			has_bots INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS match_players (
			match_id TEXT NOT NULL REFERENCES matches(id),
			player_id TEXT NOT NULL,
			team TEXT NOT NULL,
			was_leader INTEGER DEFAULT 0,
			is_bot INTEGER DEFAULT 0,
			PRIMARY KEY (match_id, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id TEXT NOT NULL REFERENCES users(id),
			endpoint TEXT NOT NULL UNIQUE,
			p256dh TEXT NOT NULL,
			auth TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetUser retrieves a user by id. A missing user is (nil, nil).
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	var avatar sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_url, rating, created_at, updated_at
		 FROM users WHERE id = ?`, id).Scan(
		&user.ID, &user.Name, &avatar,
		&user.Rating, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.AvatarURL = avatar.String
	return &user, nil
}

// UpsertUser creates or updates a user. The rating of an existing user is kept.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, avatar_url, rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 	name = excluded.name,
		 	avatar_url = excluded.avatar_url,
		 	updated_at = excluded.updated_at`,
		user.ID, user.Name, user.AvatarURL,
		user.Rating, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// ListUsers returns all registered users.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, avatar_url, rating, created_at, updated_at
		 FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var avatar sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &avatar, &u.Rating, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.AvatarURL = avatar.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateRating sets a user's rating.
func (s *SQLiteStore) UpdateRating(ctx context.Context, id string, rating int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET rating = ?, updated_at = ? WHERE id = ?`,
		rating, time.Now(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, player_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		session.ID, session.PlayerID, session.CreatedAt, session.ExpiresAt,
	)
	return err
}

// GetSession retrieves an unexpired session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, player_id, created_at, expires_at
		 FROM sessions WHERE id = ? AND expires_at > ?`,
		sessionID, time.Now()).Scan(
		&session.ID, &session.PlayerID, &session.CreatedAt, &session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// DeleteExpiredSessions removes all expired sessions.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now())
	return err
}

// CreateMatch records a finalized match. Ban history is stored as a msgpack blob.
func (s *SQLiteStore) CreateMatch(ctx context.Context, match *Match, players []MatchPlayer) (string, error) {
	bans, err := msgpack.Marshal(match.Bans)
	if err != nil {
		return "", fmt.Errorf("encode ban history: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM matches WHERE lobby_id = ?`, match.LobbyID).Scan(&existing)
	switch {
	case err == nil:
		return existing, ErrDuplicateMatch
	case err != sql.ErrNoRows:
		return "", fmt.Errorf("check existing match: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matches (id, lobby_id, selected_map, ban_history, has_bots, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.LobbyID, match.SelectedMap, bans, match.HasBots, match.CreatedAt, match.CompletedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert match: %w", err)
	}

	for _, mp := range players {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, player_id, team, was_leader, is_bot)
			 VALUES (?, ?, ?, ?, ?)`,
			match.ID, mp.PlayerID, mp.Team, mp.WasLeader, mp.IsBot,
		)
		if err != nil {
			return "", fmt.Errorf("insert match player %s: %w", mp.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit match: %w", err)
	}
	return match.ID, nil
}

// GetMatch retrieves a match by id. A missing match is (nil, nil).
func (s *SQLiteStore) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lobby_id, selected_map, ban_history, has_bots, created_at, completed_at
		 FROM matches WHERE id = ?`, matchID)
	match, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return match, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	var bans []byte
	if err := row.Scan(&m.ID, &m.LobbyID, &m.SelectedMap, &bans, &m.HasBots, &m.CreatedAt, &m.CompletedAt); err != nil {
		return nil, err
	}
	if len(bans) > 0 {
		if err := msgpack.Unmarshal(bans, &m.Bans); err != nil {
			return nil, fmt.Errorf("decode ban history for %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

// GetMatchPlayers retrieves all players for a match.
func (s *SQLiteStore) GetMatchPlayers(ctx context.Context, matchID string) ([]MatchPlayer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, player_id, team, was_leader, is_bot
		 FROM match_players WHERE match_id = ?`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []MatchPlayer
	for rows.Next() {
		var mp MatchPlayer
		if err := rows.Scan(&mp.MatchID, &mp.PlayerID, &mp.Team, &mp.WasLeader, &mp.IsBot); err != nil {
			return nil, err
		}
		players = append(players, mp)
	}
	return players, rows.Err()
}

// ListMatchesWithPlayers retrieves recent matches with player names.
// Bot-filled matches are skipped unless includeBots is set.
func (s *SQLiteStore) ListMatchesWithPlayers(ctx context.Context, limit int, includeBots bool) ([]MatchWithPlayers, error) {
	query := `SELECT id, lobby_id, selected_map, ban_history, has_bots, created_at, completed_at
		FROM matches`
	if !includeBots {
		query += ` WHERE has_bots = 0`
	}
	query += ` ORDER BY completed_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	result := make([]MatchWithPlayers, 0, len(matches))
	for _, m := range matches {
		mwp := MatchWithPlayers{Match: m}

		prows, err := s.db.QueryContext(ctx,
			`SELECT mp.player_id, u.name, mp.team, mp.was_leader
			 FROM match_players mp
			 LEFT JOIN users u ON mp.player_id = u.id
			 WHERE mp.match_id = ?
			 ORDER BY mp.player_id`, m.ID)
		if err != nil {
			return nil, err
		}

		for prows.Next() {
			var p MatchPlayerInfo
			var name sql.NullString
			if err := prows.Scan(&p.PlayerID, &name, &p.Team, &p.WasLeader); err != nil {
				prows.Close()
				return nil, err
			}
			p.Name = name.String
			if p.Name == "" {
				p.Name = p.PlayerID
			}
			if p.Team == "a" {
				mwp.TeamA = append(mwp.TeamA, p)
			} else {
				mwp.TeamB = append(mwp.TeamB, p)
			}
		}
		prows.Close()

		result = append(result, mwp)
	}

	return result, nil
}

// SavePushSubscription stores or refreshes a browser push subscription.
func (s *SQLiteStore) SavePushSubscription(ctx context.Context, sub *PushSubscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (player_id, endpoint, p256dh, auth, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		 	player_id = excluded.player_id,
		 	p256dh = excluded.p256dh,
		 	auth = excluded.auth`,
		sub.PlayerID, sub.Endpoint, sub.P256dh, sub.Auth, time.Now(),
	)
	return err
}

// GetPushSubscriptions returns every subscription registered by a player.
func (s *SQLiteStore) GetPushSubscriptions(ctx context.Context, playerID string) ([]PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, player_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE player_id = ?`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var sub PushSubscription
		if err := rows.Scan(&sub.ID, &sub.PlayerID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeletePushSubscription removes a subscription by endpoint.
func (s *SQLiteStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}
