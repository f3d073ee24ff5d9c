// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/liftsync-go/internal/store"
)

// ErrMergeConflict is returned when the target account already owns an
// event on the same (device_id, sequence_number) as the source account.
// Sequence numbers are never silently renumbered.
var ErrMergeConflict = errors.New("merge would collide on (device_id, sequence_number)")

// MergeService folds an anonymous identity into an authenticated one.
// device_id and sequence_number are untouched, so per-device ordering
// survives the merge.
type MergeService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMergeService creates a MergeService.
func NewMergeService(db *sql.DB, logger *slog.Logger) *MergeService {
	return &MergeService{db: db, logger: logger}
}

// Merge reassigns every event owned by anonUserID to authUserID in one
// transaction, carrying the workouts projection along. Safe to call twice:
// the second call finds nothing to move and returns zero.
func (s *MergeService) Merge(ctx context.Context, anonUserID, authUserID string) (int64, error) {
	if anonUserID == authUserID {
		return 0, errors.New("cannot merge a user into itself")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := store.New(tx)

	conflicts, err := q.CountMergeConflicts(ctx, anonUserID, authUserID)
	if err != nil {
		return 0, err
	}
	if conflicts > 0 {
		return 0, fmt.Errorf("%w: %d conflicting events", ErrMergeConflict, conflicts)
	}

	moved, err := q.ReassignEventsUser(ctx, anonUserID, authUserID)
	if err != nil {
		return 0, err
	}

	workouts, err := q.ReassignWorkoutsUser(ctx, anonUserID, authUserID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing merge: %w", err)
	}

	s.logger.Info("merged user data",
		"from", anonUserID,
		"to", authUserID,
		"events", moved,
		"workouts", workouts,
	)
	return moved, nil
}
