package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/db"
)

// main applies the submissions schema. It is idempotent and safe to run on
// every deploy.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("starting schema migration")

	// Load configuration
	cfg := config.MustLoad()
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not configured")
		os.Exit(1)
	}

	// Connect to database
	ctx := context.Background()
	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("connected to database")

	if err := db.NewStore(dbPool, nil).Migrate(ctx); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	logger.Info("schema migration complete")
}
