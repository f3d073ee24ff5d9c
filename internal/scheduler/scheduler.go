// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs background projection rebuilds on a cron
// schedule, repairing any drift the incremental update path left behind.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/projection"
)

// Scheduler owns the cron instance driving periodic rebuilds.
type Scheduler struct {
	rebuilder *projection.Rebuilder
	cache     cache.Cache
	cron      *cron.Cron
	logger    *slog.Logger
}

// New creates a new scheduler instance.
func New(rebuilder *projection.Rebuilder, c cache.Cache, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		rebuilder: rebuilder,
		cache:     c,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the rebuild job under the given cron spec and begins the
// schedule.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if _, err := s.rebuilder.Rebuild(ctx, ""); err != nil {
			s.logger.Error("scheduled projection rebuild failed", "error", err)
			return
		}
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn("clearing read cache after scheduled rebuild", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", spec)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
