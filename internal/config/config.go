// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/mapban"
	"github.com/edvart/inhouse-queue/internal/queue"
)

type Config struct {
	Port         string
	BaseURL      string
	DatabasePath string
	DevMode      bool
	SteamAPIKey  string
	AdminIDs     []string
	LogLevel     string
	LogFormat    string

	Queue        queue.Config
	SessionGrace time.Duration

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
}

// Load reads a .env file if present, then the environment. Invalid values
// are logged and replaced by their defaults.
func Load() Config {
	// Ignored where the file does not exist.
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	lc := lobby.DefaultConfig()

	cfg := Config{
		Port:         port,
		BaseURL:      getEnv("BASE_URL", "http://localhost:"+port),
		DatabasePath: getEnv("DATABASE_PATH", "./data/inhouse.db"),
		DevMode:      getBool("DEV_MODE", false),
		SteamAPIKey:  getEnv("STEAM_API_KEY", ""),
		AdminIDs:     splitList(getEnv("ADMIN_IDS", "")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		SessionGrace: getDuration("SESSION_GRACE", 30*time.Second),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", ""),
	}

	if pool := splitList(getEnv("MAP_POOL", "")); len(pool) > 0 {
		lc.MapPool = pool
	}
	lc.ReadyTimeout = getDuration("READY_TIMEOUT", lc.ReadyTimeout)
	lc.BanTurnTimeout = getDuration("BAN_TURN_TIMEOUT", lc.BanTurnTimeout)
	lc.AutoBanMap = getEnv("AUTO_BAN_MAP", lc.AutoBanMap)
	lc.FinalizeAttempts = uint64(getInt("FINALIZE_ATTEMPTS", int(lc.FinalizeAttempts), 1))
	lc.FinalizeBackoff = getDuration("FINALIZE_BACKOFF", lc.FinalizeBackoff)
	lc.RetainFor = getDuration("LOBBY_RETAIN", lc.RetainFor)
	lc.MinTeamSize = getInt("MIN_TEAM_SIZE", lc.MinTeamSize, 1)
	lc.RequeueOnReadyTimeout = getBool("REQUEUE_ON_READY_TIMEOUT", lc.RequeueOnReadyTimeout)

	if v := getEnv("LEADER_POLICY", ""); v != "" {
		if p, err := mapban.ParseLeaderPolicy(v); err == nil {
			lc.LeaderPolicy = p
		} else {
			log.WithError(err).Warn("Invalid LEADER_POLICY, using default")
		}
	}
	if v := getEnv("FIRST_BAN_POLICY", ""); v != "" {
		if p, err := mapban.ParseFirstBanPolicy(v); err == nil {
			lc.FirstBanPolicy = p
		} else {
			log.WithError(err).Warn("Invalid FIRST_BAN_POLICY, using default")
		}
	}

	cfg.Queue = queue.Config{
		ID:           getEnv("QUEUE_ID", "main"),
		LobbySize:    getInt("LOBBY_SIZE", 10, 2),
		TickInterval: getDuration("QUEUE_TICK", 0),
		Lobby:        lc,
	}
	return cfg
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	var problems []error
	if c.Queue.ID == "" {
		problems = append(problems, errors.New("queue id is empty"))
	}
	if c.Queue.LobbySize < 2 {
		problems = append(problems, fmt.Errorf("lobby size %d is below 2", c.Queue.LobbySize))
	}
	if len(c.Queue.Lobby.MapPool) == 0 {
		problems = append(problems, errors.New("map pool is empty"))
	}
	seen := make(map[string]bool)
	for _, m := range c.Queue.Lobby.MapPool {
		if seen[m] {
			problems = append(problems, fmt.Errorf("map %q is listed twice", m))
		}
		seen[m] = true
	}
	if c.Queue.Lobby.AutoBanMap != "" && !seen[c.Queue.Lobby.AutoBanMap] {
		problems = append(problems, fmt.Errorf("auto-ban map %q is not in the pool", c.Queue.Lobby.AutoBanMap))
	}
	if c.Queue.Lobby.FinalizeBackoff <= 0 {
		problems = append(problems, errors.New("finalize backoff must be positive"))
	}
	if c.Queue.Lobby.MinTeamSize*2 > c.Queue.LobbySize {
		problems = append(problems, fmt.Errorf("min team size %d does not fit lobby size %d", c.Queue.Lobby.MinTeamSize, c.Queue.LobbySize))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Errorf("log format %q must be text or json", c.LogFormat))
	}
	return errors.Join(problems...)
}

// IsAdmin reports whether playerID is in ADMIN_IDS.
func (c Config) IsAdmin(playerID string) bool {
	for _, id := range c.AdminIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue, min int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		log.WithField("value", raw).Warnf("Invalid %s (must be integer >= %d), using %d", key, min, defaultValue)
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		log.WithField("value", raw).Warnf("Invalid %s (must be a duration like 30s), using %s", key, defaultValue)
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.WithField("value", raw).Warnf("Invalid %s, using %t", key, defaultValue)
		return defaultValue
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
