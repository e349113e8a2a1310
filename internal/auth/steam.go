package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/yohcop/openid-go"

	"github.com/edvart/inhouse-queue/internal/roster"
	"github.com/edvart/inhouse-queue/internal/store"
)

const (
	steamOpenIDEndpoint = "https://steamcommunity.com/openid"
	steamAPIURL         = "https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v0002/"
)

// SteamAuth handles Steam OpenID authentication. Players are identified by
// their 64-bit Steam ID.
type SteamAuth struct {
	apiKey         string
	baseURL        string
	store          store.Store
	sessions       *SessionManager
	admins         *AdminConfig
	nonceStore     openid.NonceStore
	discoveryCache openid.DiscoveryCache
}

// SteamUser represents user data from Steam API.
type SteamUser struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	AvatarURL   string `json:"avatarfull"`
}

// NewSteamAuth creates a new Steam authentication handler.
func NewSteamAuth(apiKey, baseURL string, store store.Store, sessions *SessionManager, admins *AdminConfig) *SteamAuth {
	return &SteamAuth{
		apiKey:         apiKey,
		baseURL:        baseURL,
		store:          store,
		sessions:       sessions,
		admins:         admins,
		nonceStore:     openid.NewSimpleNonceStore(),
		discoveryCache: openid.NewSimpleDiscoveryCache(),
	}
}

// LoginHandler redirects to Steam's OpenID login.
func (sa *SteamAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	callbackURL := sa.baseURL + "/auth/callback"

	authURL, err := openid.RedirectURL(
		steamOpenIDEndpoint,
		callbackURL,
		sa.baseURL,
	)
	if err != nil {
		http.Error(w, "Failed to create auth URL", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler handles the OpenID callback from Steam.
func (sa *SteamAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	fullURL := sa.baseURL + r.URL.String()

	id, err := openid.Verify(fullURL, sa.discoveryCache, sa.nonceStore)
	if err != nil {
		http.Error(w, "OpenID verification failed: "+err.Error(), http.StatusUnauthorized)
		return
	}

	steamID := SteamIDFromOpenIDURL(id)
	if steamID == "" {
		http.Error(w, "Invalid Steam ID in response", http.StatusBadRequest)
		return
	}

	// Fetch user info from Steam API
	steamUser, err := sa.fetchSteamUser(r.Context(), steamID)
	if err != nil {
		http.Error(w, "Failed to fetch Steam user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Create or update user in database. The stored rating survives upserts.
	if err := sa.saveUser(r.Context(), steamUser.SteamID, steamUser.PersonaName, steamUser.AvatarURL); err != nil {
		log.WithError(err).WithField("player", steamID).Error("Failed to save user")
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	if err := sa.sessions.CreateSession(r.Context(), w, steamID); err != nil {
		log.WithError(err).WithField("player", steamID).Error("Failed to create session")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	log.WithField("player", steamID).Info("Player logged in")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (sa *SteamAuth) saveUser(ctx context.Context, id, name, avatarURL string) error {
	now := time.Now()
	return sa.store.UpsertUser(ctx, &store.User{
		ID:        id,
		Name:      name,
		AvatarURL: avatarURL,
		Rating:    roster.DefaultRating,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// LogoutHandler logs out the user.
func (sa *SteamAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sa.sessions.DeleteSession(r.Context(), w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (sa *SteamAuth) fetchSteamUser(ctx context.Context, steamID string) (*SteamUser, error) {
	reqURL := fmt.Sprintf("%s?key=%s&steamids=%s", steamAPIURL, sa.apiKey, steamID)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("steam API returned status %d", resp.StatusCode)
	}

	var result struct {
		Response struct {
			Players []SteamUser `json:"players"`
		} `json:"response"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if len(result.Response.Players) == 0 {
		return nil, fmt.Errorf("no player data returned")
	}

	return &result.Response.Players[0], nil
}

// DevLoginHandler provides a development-only login mechanism.
func (sa *SteamAuth) DevLoginHandler(w http.ResponseWriter, r *http.Request) {
	steamID := r.URL.Query().Get("steamid")
	name := r.URL.Query().Get("name")

	if steamID == "" || name == "" {
		http.Error(w, "steamid and name required", http.StatusBadRequest)
		return
	}

	if err := sa.saveUser(r.Context(), steamID, name, ""); err != nil {
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	// Create session
	if err := sa.sessions.CreateSession(r.Context(), w, steamID); err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// MeHandler returns the current player's info.
func (sa *SteamAuth) MeHandler(w http.ResponseWriter, r *http.Request) {
	player, err := sa.sessions.Player(r.Context(), r)
	if err != nil {
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		roster.Player
		Admin bool `json:"admin"`
	}{Player: player, Admin: sa.admins.IsAdmin(player.ID)})
}

// CreateFakeUsers creates fake users for development. Ratings are spread so
// team balancing has something to work with.
func (sa *SteamAuth) CreateFakeUsers(ctx context.Context, count int) error {
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("fake_%d", i)
		if err := sa.saveUser(ctx, id, fmt.Sprintf("Player %d", i), ""); err != nil {
			return err
		}
		if err := sa.store.UpdateRating(ctx, id, roster.DefaultRating+(i%5-2)*50); err != nil {
			return err
		}
	}
	return nil
}

// SteamIDFromOpenIDURL extracts the Steam ID from an OpenID identity URL.
func SteamIDFromOpenIDURL(idURL string) string {
	for _, prefix := range []string{"https://steamcommunity.com/openid/id/", "http://steamcommunity.com/openid/id/"} {
		if id, ok := strings.CutPrefix(idURL, prefix); ok && id != "" && strings.Trim(id, "0123456789") == "" {
			return id
		}
	}
	return ""
}
