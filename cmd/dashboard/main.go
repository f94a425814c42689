// Command dashboard serves the river flow pages over HTTP: hydrograph images
// and latest readings grouped by river, one page per region, plus health and
// metrics endpoints.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/river-gage-etl/internal/config"
	"github.com/couchcryptid/river-gage-etl/internal/observability"
	"github.com/couchcryptid/river-gage-etl/internal/registry"
	"github.com/couchcryptid/river-gage-etl/internal/store"
	"github.com/couchcryptid/river-gage-etl/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	reg, err := registry.Load(cfg.GageFile)
	if err != nil {
		logger.Error("failed to load gage registry", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open data directory", "error", err)
		os.Exit(1)
	}

	srv := web.New(cfg, reg, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("dashboard server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
