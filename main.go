package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/easybot/easybot/pkg/blob"
	"github.com/easybot/easybot/pkg/config"
	"github.com/easybot/easybot/pkg/db"
	"github.com/easybot/easybot/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("failed to write default config", "error", err)
	}
	cfg, path, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseDSN())
	if err != nil {
		logger.Error("failed to open database", "dsn", cfg.DatabaseDSN(), "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(database); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	store, err := blob.NewLocalStore(cfg.StorageRoot())
	if err != nil {
		logger.Error("failed to open blob storage", "root", cfg.StorageRoot(), "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, database, store)
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
}
