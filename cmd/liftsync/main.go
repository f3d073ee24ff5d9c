// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/config"
	"github.com/olegiv/liftsync-go/internal/handler"
	"github.com/olegiv/liftsync-go/internal/identity"
	"github.com/olegiv/liftsync-go/internal/middleware"
	"github.com/olegiv/liftsync-go/internal/projection"
	"github.com/olegiv/liftsync-go/internal/scheduler"
	"github.com/olegiv/liftsync-go/internal/service"
	"github.com/olegiv/liftsync-go/internal/store"
)

// Version information - injected at build time via ldflags
var (
	appVersion = "dev"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting liftsync server",
		"version", appVersion,
		"env", cfg.Env,
		"addr", cfg.ServerAddr(),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return err
	}

	readCache, err := cache.New(cache.Config{
		Type:            cfg.CacheType,
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTL,
		CleanupInterval: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer func() { _ = readCache.Close() }()

	tokens, err := cfg.TokenMap()
	if err != nil {
		return err
	}
	provider := identity.NewStaticProvider(tokens)

	rebuilder := projection.New(db, logger)
	syncService := service.NewSyncService(db, rebuilder, logger)
	mergeService := service.NewMergeService(db, logger)

	syncHandler := handler.NewSyncHandler(syncService, readCache, logger)
	projectionsHandler := handler.NewProjectionsHandler(rebuilder, readCache, logger)
	mergeHandler := handler.NewMergeHandler(mergeService, rebuilder, readCache, logger)
	workoutsHandler := handler.NewWorkoutsHandler(db, readCache, logger)
	healthHandler := handler.NewHealthHandler(db)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Identity(provider))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sync", syncHandler.Sync)
		r.Post("/projections/rebuild", projectionsHandler.Rebuild)
		r.Post("/users/merge", mergeHandler.Merge)
		r.Get("/workouts", workoutsHandler.List)
		r.Get("/workouts/{workoutID}/sets", workoutsHandler.Sets)
	})

	var sched *scheduler.Scheduler
	if cfg.RebuildSchedule != "" {
		sched = scheduler.New(rebuilder, readCache, logger)
		if err := sched.Start(cfg.RebuildSchedule); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
