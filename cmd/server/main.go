package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/inhouse-queue/internal/auth"
	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/config"
	"github.com/edvart/inhouse-queue/internal/coordinator"
	"github.com/edvart/inhouse-queue/internal/matchrecorder"
	"github.com/edvart/inhouse-queue/internal/metrics"
	"github.com/edvart/inhouse-queue/internal/push"
	"github.com/edvart/inhouse-queue/internal/queue"
	"github.com/edvart/inhouse-queue/internal/roster"
	"github.com/edvart/inhouse-queue/internal/session"
	"github.com/edvart/inhouse-queue/internal/store"
	"github.com/edvart/inhouse-queue/internal/web"
)

const (
	tapBuffer          = 256
	sessionCleanupTick = time.Hour
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg)

	if cfg.SteamAPIKey == "" && !cfg.DevMode {
		log.Warn("STEAM_API_KEY not set. Steam login will not work.")
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsService := metrics.NewService(reg)

	// Matchmaking core
	hub := broadcast.NewHub()
	registry := session.NewRegistry(hub, cfg.SessionGrace)
	manager := queue.NewManager(cfg.Queue, queue.Deps{
		Publisher:  hub,
		Recorder:   metricsService.InstrumentRecorder(matchrecorder.New(db)),
		Membership: registry,
	})
	coord := coordinator.New(manager, hub)
	registry.SetLeaver(coord)
	metricsService.RegisterSessions(registry.Count)

	go metricsService.Run(ctx, hub.Tap(tapBuffer))

	// Push notifications
	pushService := push.NewService(db, push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		VAPIDSubject:    cfg.VAPIDSubject,
	})
	if pushService.Enabled() {
		go push.NewNotifier(pushService).Run(ctx, hub.Tap(tapBuffer))
	} else {
		log.Info("VAPID keys not configured. Push notifications disabled.")
	}

	// Auth
	admins := auth.NewAdminConfig(cfg.AdminIDs)
	sessions := auth.NewSessionManager(db, roster.NewStoreGateway(db))
	steamAuth := auth.NewSteamAuth(cfg.SteamAPIKey, cfg.BaseURL, db, sessions, admins)

	if cfg.DevMode {
		log.Info("Dev mode enabled")
		if err := steamAuth.CreateFakeUsers(ctx, 15); err != nil {
			log.WithError(err).Warn("Failed to create fake users")
		}
	}

	server := web.NewServer(web.Deps{
		Coordinator: coord,
		Hub:         hub,
		Registry:    registry,
		SteamAuth:   steamAuth,
		Sessions:    sessions,
		Admins:      admins,
		Store:       db,
		Push:        pushService,
		Metrics:     metrics.NewMetricsHandler(reg),
	}, web.Config{
		QueueID: cfg.Queue.ID,
		DevMode: cfg.DevMode,
	})

	go manager.Run(ctx)
	go cleanupSessions(ctx, db)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP server shutdown error")
		}
	}()

	log.WithFields(log.Fields{
		"port":       cfg.Port,
		"queue":      cfg.Queue.ID,
		"lobby_size": cfg.Queue.LobbySize,
	}).Info("Server running")
	if cfg.DevMode {
		log.Infof("Dev login: http://localhost:%s/dev/login?steamid=test1&name=TestUser", cfg.Port)
	}

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}

	log.Info("Server stopped")
}

func setupLogging(cfg config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func cleanupSessions(ctx context.Context, db store.Store) {
	ticker := time.NewTicker(sessionCleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.DeleteExpiredSessions(ctx); err != nil {
				log.WithError(err).Warn("Failed to delete expired sessions")
			}
		}
	}
}
