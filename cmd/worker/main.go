package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/db"
	"github.com/brojonat/txconfirm/service/harness"
	"github.com/brojonat/txconfirm/service/keys"
	"github.com/brojonat/txconfirm/service/metrics"
	natspkg "github.com/brojonat/txconfirm/service/nats"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/temporal"
	"github.com/brojonat/txconfirm/service/txn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	logger.Info("Prometheus metrics collector initialized")

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Initialize Solana RPC client
	solanaClient := solana.NewClient(solana.NewRPCClient(cfg.RPCEndpoint), solana.EndpointLabel(cfg.RPCEndpoint), metricsCollector, logger, harness.ClientOptions(cfg)...)
	logger.Info("initialized solana RPC client", "url", cfg.RPCEndpoint)

	// Resolve the fee payer
	payer, generated, err := keys.Resolve(cfg.PayerKeypairPath, cfg.PayerPrivateKey)
	if err != nil {
		logger.Error("failed to resolve payer", "error", err)
		os.Exit(1)
	}
	if generated {
		logger.Warn("no payer configured, generated an ephemeral keypair; fund it before submitting",
			"payer", payer.PublicKey().String(),
		)
		if cfg.AirdropLamports > 0 {
			if _, err := solanaClient.Airdrop(ctx, payer.PublicKey(), cfg.AirdropLamports); err != nil {
				logger.Warn("airdrop to ephemeral payer failed", "error", err)
			}
		}
	}

	// Completion hooks
	var hooks []txn.Hook
	if cfg.DatabaseURL != "" {
		dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		hooks = append(hooks, store)
		logger.Info("connected to database")
	}

	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, logger, metricsCollector)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		hooks = append(hooks, natspkg.Hook{Publisher: natsPublisher})
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	trackerOpts, err := harness.TrackerOptions(cfg)
	if err != nil {
		logger.Error("invalid confirmation settings", "error", err)
		os.Exit(1)
	}
	tracker := txn.NewTracker(solanaClient, logger, append(trackerOpts, txn.WithMetrics(metricsCollector))...)
	sender := txn.NewSender(solanaClient, tracker, logger,
		txn.WithSubmitOptions(harness.SubmitOptions(cfg)),
		txn.WithHooks(hooks...),
		txn.WithSenderMetrics(metricsCollector),
	)

	// Initialize Temporal worker
	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Activities:        temporal.NewActivities(solanaClient, sender, payer, hooks, metricsCollector, logger),
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"rpc_endpoint", cfg.RPCEndpoint,
		"payer", payer.PublicKey().String(),
		"hooks", len(hooks),
		"task_queue", cfg.TemporalTaskQueue,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting temporal worker")
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		logger.Info("stopping temporal worker")
		worker.Stop()
		logger.Info("shutdown complete")
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
