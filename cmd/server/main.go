package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/db"
	"github.com/brojonat/txconfirm/service/harness"
	"github.com/brojonat/txconfirm/service/metrics"
	natspkg "github.com/brojonat/txconfirm/service/nats"
	"github.com/brojonat/txconfirm/service/server"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/temporal"
	"github.com/brojonat/txconfirm/service/txn"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaClient := solana.NewClient(solana.NewRPCClient(cfg.RPCEndpoint), solana.EndpointLabel(cfg.RPCEndpoint), metricsCollector, logger, harness.ClientOptions(cfg)...)
	trackerOpts, err := harness.TrackerOptions(cfg)
	if err != nil {
		logger.Error("invalid confirmation settings", "error", err)
		os.Exit(1)
	}
	tracker := txn.NewTracker(solanaClient, logger, append(trackerOpts, txn.WithMetrics(metricsCollector))...)
	logger.Info("initialized solana RPC client", "url", cfg.RPCEndpoint)

	// Submission history is optional
	var store server.SubmissionStore
	if cfg.DatabaseURL != "" {
		dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		store = db.NewStore(dbPool, metricsCollector)
		logger.Info("connected to database")
	}

	// Initialize Temporal client for starting submission workflows
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	// Outcome streaming is optional
	var events server.EventWatcher
	if cfg.NATSURL != "" {
		subscriber, err := natspkg.NewSubscriber(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer subscriber.Close()
		events = subscriber
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	httpServer := server.New(cfg.ServerAddr, cfg, store, temporalClient, tracker, solanaClient, events, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"rpc_endpoint", cfg.RPCEndpoint,
		"database", cfg.DatabaseURL != "",
		"nats", cfg.NATSURL != "",
		"temporal_host", cfg.TemporalHost,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
