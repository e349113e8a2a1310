package auth

import (
	"net/http"
)

// AdminConfig holds admin configuration.
type AdminConfig struct {
	AdminIDs map[string]bool
}

// NewAdminConfig creates admin config from a list of player ids.
func NewAdminConfig(ids []string) *AdminConfig {
	cfg := &AdminConfig{
		AdminIDs: make(map[string]bool),
	}
	for _, id := range ids {
		if id != "" {
			cfg.AdminIDs[id] = true
		}
	}
	return cfg
}

// IsAdmin checks if a player id is an admin.
func (c *AdminConfig) IsAdmin(playerID string) bool {
	return c != nil && c.AdminIDs[playerID]
}

// AdminMiddleware requires an admin player. It must run after RequireAuth.
func AdminMiddleware(cfg *AdminConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			player, ok := PlayerFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !cfg.IsAdmin(player.ID) {
				http.Error(w, "Forbidden: Admin access required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
