package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hazard-sync/internal/adapter/httpadapter"
	"github.com/couchcryptid/hazard-sync/internal/adapter/postgres"
	"github.com/couchcryptid/hazard-sync/internal/app"
	"github.com/couchcryptid/hazard-sync/internal/config"
	"github.com/couchcryptid/hazard-sync/internal/observability"
	"github.com/couchcryptid/hazard-sync/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	catalog, err := config.LoadSources(cfg.SourcesFile, cfg.SyncInterval)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("source catalog not found, running derived sources only", "path", cfg.SourcesFile)
	case err != nil:
		logger.Error("failed to load source catalog", "path", cfg.SourcesFile, "error", err)
		os.Exit(1)
	}

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	geocoder := app.NewGeocoder(cfg, logger, metrics)
	sources, err := app.BuildSources(cfg, catalog, store, geocoder, logger, clock)
	if err != nil {
		logger.Error("failed to build sources", "error", err)
		os.Exit(1)
	}

	syncer := pipeline.NewSyncer(store, logger, metrics, clock)
	reaper := pipeline.NewReaper(store, cfg.StaleAfter, logger, metrics, clock)
	scheduler := pipeline.NewScheduler(syncer, reaper, sources.List, cfg.CleanupInterval, logger, metrics, clock)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(store, syncer), store, clock, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start sync scheduler.
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	if err := sources.Close(); err != nil {
		logger.Error("source close error", "error", err)
	}

	logger.Info("shutdown complete")
}
