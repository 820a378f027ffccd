package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerline/finance-tracker-backend/internal/api/rest"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/config"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)
	logger.Info("starting finance tracker api",
		slog.String("version", cfg.Version),
		slog.String("environment", cfg.Environment))

	server, err := rest.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
