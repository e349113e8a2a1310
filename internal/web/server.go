package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edvart/inhouse-queue/internal/auth"
	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/coordinator"
	"github.com/edvart/inhouse-queue/internal/push"
	"github.com/edvart/inhouse-queue/internal/session"
	"github.com/edvart/inhouse-queue/internal/store"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	router      *chi.Mux
	coordinator *coordinator.Coordinator
	hub         *broadcast.Hub
	registry    *session.Registry
	steamAuth   *auth.SteamAuth
	sessions    *auth.SessionManager
	admins      *auth.AdminConfig
	store       store.Store
	pushService *push.Service
	metrics     http.Handler
	queueID     string
	devMode     bool
	heartbeat   time.Duration
}

// Config holds server configuration.
type Config struct {
	QueueID string
	DevMode bool
	// Heartbeat is the ping interval on WebSocket connections. Zero uses
	// the default.
	Heartbeat time.Duration
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Hub         *broadcast.Hub
	Registry    *session.Registry
	SteamAuth   *auth.SteamAuth
	Sessions    *auth.SessionManager
	Admins      *auth.AdminConfig
	Store       store.Store
	Push        *push.Service // optional
	Metrics     http.Handler  // optional
}

const defaultHeartbeat = 15 * time.Second

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg Config) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	s := &Server{
		router:      chi.NewRouter(),
		coordinator: deps.Coordinator,
		hub:         deps.Hub,
		registry:    deps.Registry,
		steamAuth:   deps.SteamAuth,
		sessions:    deps.Sessions,
		admins:      deps.Admins,
		store:       deps.Store,
		pushService: deps.Push,
		metrics:     deps.Metrics,
		queueID:     cfg.QueueID,
		devMode:     cfg.DevMode,
		heartbeat:   cfg.Heartbeat,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// Auth routes
	r.Get("/auth/login", s.steamAuth.LoginHandler)
	r.Get("/auth/callback", s.steamAuth.CallbackHandler)
	r.Get("/auth/logout", s.steamAuth.LogoutHandler)
	r.Get("/me", s.steamAuth.MeHandler)

	// Dev mode routes
	if s.devMode {
		r.Get("/dev/login", s.steamAuth.DevLoginHandler)
		r.Post("/dev/add-fake-players", s.handleAddFakePlayers)
	}

	// Public state
	r.Get("/api/state", s.handleState)
	r.Get("/api/lobby/{lobbyID}", s.handleGetLobby)
	r.Get("/api/matches", s.handleListMatches)
	r.Get("/push/vapid-public-key", s.handleGetVAPIDPublicKey)

	// Player routes (require auth)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.sessions))

		r.Get("/ws", s.handleWebSocket)
		r.Get("/events", s.handleSSE)

		r.Post("/queue/join", s.handleJoinQueue)
		r.Post("/queue/leave", s.handleLeaveQueue)
		r.Post("/lobby/{lobbyID}/ready", s.handleMarkReady)
		r.Post("/lobby/{lobbyID}/leave", s.handleLeaveLobby)
		r.Post("/lobby/{lobbyID}/ban/{map}", s.handleBanMap)

		r.Post("/push/subscribe", s.handleSubscribePush)
		r.Post("/push/unsubscribe", s.handleUnsubscribePush)
		r.Post("/push/test", s.handleTestPush)
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.sessions))
		r.Use(auth.AdminMiddleware(s.admins))

		r.Get("/state", s.handleAdminState)
		r.Get("/users", s.handleAdminUsers)
		r.Post("/lobby/{lobbyID}/ready-all", s.handleAdminReadyAll)
		r.Post("/lobby/{lobbyID}/cancel", s.handleAdminCancelLobby)
		r.Post("/queue/bots", s.handleAdminFillBots)
		r.Post("/queue/kick/{playerID}", s.handleAdminKickPlayer)
		r.Post("/players/{playerID}/rating/{rating}", s.handleAdminSetRating)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
