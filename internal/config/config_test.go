package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvart/inhouse-queue/internal/mapban"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "main", cfg.Queue.ID)
	assert.Equal(t, 10, cfg.Queue.LobbySize)
	assert.Equal(t, 30*time.Second, cfg.SessionGrace)
	assert.Equal(t, mapban.LeaderFirstJoined, cfg.Queue.Lobby.LeaderPolicy)
	assert.Len(t, cfg.Queue.Lobby.MapPool, 7)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOBBY_SIZE", "4")
	t.Setenv("MAP_POOL", "Nuke, Mirage ,Inferno")
	t.Setenv("AUTO_BAN_MAP", "Nuke")
	t.Setenv("READY_TIMEOUT", "45s")
	t.Setenv("LEADER_POLICY", "highest-rating")
	t.Setenv("FIRST_BAN_POLICY", "coin-flip")
	t.Setenv("REQUEUE_ON_READY_TIMEOUT", "false")
	t.Setenv("ADMIN_IDS", "a1,a2")
	t.Setenv("DEV_MODE", "true")

	cfg := Load()
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 4, cfg.Queue.LobbySize)
	assert.Equal(t, []string{"Nuke", "Mirage", "Inferno"}, cfg.Queue.Lobby.MapPool)
	assert.Equal(t, 45*time.Second, cfg.Queue.Lobby.ReadyTimeout)
	assert.Equal(t, mapban.LeaderHighestRating, cfg.Queue.Lobby.LeaderPolicy)
	assert.Equal(t, mapban.FirstBanCoinFlip, cfg.Queue.Lobby.FirstBanPolicy)
	assert.False(t, cfg.Queue.Lobby.RequeueOnReadyTimeout)
	assert.True(t, cfg.DevMode)
	assert.True(t, cfg.IsAdmin("a2"))
	assert.False(t, cfg.IsAdmin("p1"))
	require.NoError(t, cfg.Validate())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("LOBBY_SIZE", "1")
	t.Setenv("READY_TIMEOUT", "soon")
	t.Setenv("LEADER_POLICY", "loudest")
	t.Setenv("DEV_MODE", "maybe")

	cfg := Load()
	assert.Equal(t, 10, cfg.Queue.LobbySize)
	assert.Equal(t, 30*time.Second, cfg.Queue.Lobby.ReadyTimeout)
	assert.Equal(t, mapban.LeaderFirstJoined, cfg.Queue.Lobby.LeaderPolicy)
	assert.False(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"small lobby", func(c *Config) { c.Queue.LobbySize = 1 }},
		{"empty pool", func(c *Config) { c.Queue.Lobby.MapPool = nil }},
		{"duplicate map", func(c *Config) { c.Queue.Lobby.MapPool = []string{"A", "A"} }},
		{"auto-ban outside pool", func(c *Config) { c.Queue.Lobby.AutoBanMap = "Cache" }},
		{"zero backoff", func(c *Config) { c.Queue.Lobby.FinalizeBackoff = 0 }},
		{"teams too large", func(c *Config) { c.Queue.Lobby.MinTeamSize = 6 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
