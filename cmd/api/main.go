// Command api is the Clubsync Notifier API server.
//
// Usage:
//
//	notifier-api
//	API_PORT=8080 notifier-api

// @title Clubsync Notifier API
// @version 1.0.0
// @description Notification scheduling and delivery core for teams, players, and coaches.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/clubsync/notifier/internal/api"
	"github.com/clubsync/notifier/internal/audience"
	"github.com/clubsync/notifier/internal/cache"
	"github.com/clubsync/notifier/internal/config"
	"github.com/clubsync/notifier/internal/db"
	"github.com/clubsync/notifier/internal/delivery"
	"github.com/clubsync/notifier/internal/ledger"
	"github.com/clubsync/notifier/internal/maintenance"
	"github.com/clubsync/notifier/internal/scheduler"
	"github.com/clubsync/notifier/internal/store"
	"github.com/clubsync/notifier/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Wire the scheduling core
	notifStore := store.New(pool.Pool)
	dispatchLedger := ledger.NewPG(pool.Pool)
	directory := audience.NewDirectory(pool.Pool)
	sender := delivery.NewPushSender(cfg.PushCredentialsFile, logger)
	if sender == nil {
		logger.Info("Delivery disabled (no PUSH_CREDENTIALS_FILE); intents are dropped")
	}

	core := scheduler.New(dispatchLedger, directory, sender, scheduler.Config{
		SweepInterval: cfg.SweepInterval,
		Workers:       cfg.DispatchWorkers,
		ReminderDelay: cfg.ReminderDelay,
		MaxReminders:  cfg.MaxReminders,
		TriggerWindow: cfg.TriggerWindow,
	}, logger)

	// Arm everything already stored
	armed, _, err := core.Resync(ctx, notifStore)
	if err != nil {
		logger.Error("Failed to arm stored notifications", "error", err)
		os.Exit(1)
	}
	logger.Info("Stored notifications armed", "count", armed)

	go core.Run(ctx)

	// Trigger-event LISTEN/NOTIFY consumer
	go trigger.Start(ctx, cfg.DatabaseURL, core, logger)

	// Maintenance tickers (ledger pruning, registry resync)
	mcfg := maintenance.DefaultConfig()
	mcfg.LedgerRetention = cfg.LedgerRetention
	go maintenance.Start(ctx, dispatchLedger, core, notifStore, mcfg, logger)

	// Initialize cache and router
	appCache := cache.New(cfg.CacheEnabled)
	router := api.NewRouter(notifStore, core, pool, appCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Clubsync Notifier API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
