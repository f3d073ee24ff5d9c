// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/store"
)

// ApplyEvents folds freshly ingested events into the projection tables in
// place. It is a best-effort fast path over the same reducer semantics as
// Rebuild; the rebuild endpoint remains the authoritative recovery when
// this falls behind. Events must arrive in replay order.
func (r *Rebuilder) ApplyEvents(ctx context.Context, events []model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning projection update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := store.New(tx)

	for _, e := range events {
		if err := r.applyOne(ctx, q, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing projection update: %w", err)
	}
	return nil
}

func (r *Rebuilder) applyOne(ctx context.Context, q *store.Queries, e model.Event) error {
	switch e.EventType {
	case model.EventWorkoutStarted:
		var p model.WorkoutStartedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return r.skipUndecodable(e, err)
		}
		w, err := q.GetWorkoutProjection(ctx, p.WorkoutID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			w = model.WorkoutProjection{
				WorkoutID: p.WorkoutID,
				UserID:    e.UserID,
				StartedAt: p.StartedAt,
				Status:    model.WorkoutStatusInProgress,
			}
		case err != nil:
			return fmt.Errorf("loading workout %s: %w", p.WorkoutID, err)
		default:
			// A replayed start refreshes the timestamp but never reopens a
			// finished workout.
			w.StartedAt = p.StartedAt
		}
		return q.UpsertWorkoutProjection(ctx, w)

	case model.EventWorkoutEnded:
		var p model.WorkoutEndedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return r.skipUndecodable(e, err)
		}
		w, err := q.GetWorkoutProjection(ctx, p.WorkoutID)
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("WorkoutEnded for unknown workout", "workout_id", p.WorkoutID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading workout %s: %w", p.WorkoutID, err)
		}
		ended := p.EndedAt
		w.EndedAt = &ended
		w.Status = model.WorkoutStatusCompleted
		return q.UpsertWorkoutProjection(ctx, w)

	case model.EventWorkoutCancelled:
		var p model.WorkoutCancelledPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return r.skipUndecodable(e, err)
		}
		w, err := q.GetWorkoutProjection(ctx, p.WorkoutID)
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("WorkoutCancelled for unknown workout", "workout_id", p.WorkoutID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading workout %s: %w", p.WorkoutID, err)
		}
		w.Status = model.WorkoutStatusCancelled
		return q.UpsertWorkoutProjection(ctx, w)

	case model.EventExerciseAdded:
		return nil

	case model.EventSetCompleted:
		var p model.SetCompletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return r.skipUndecodable(e, err)
		}
		if _, err := q.GetWorkoutProjection(ctx, p.WorkoutID); errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("SetCompleted for unknown workout", "workout_id", p.WorkoutID, "set_id", p.SetID)
			return nil
		} else if err != nil {
			return fmt.Errorf("loading workout %s: %w", p.WorkoutID, err)
		}
		return q.UpsertSetProjection(ctx, model.SetProjection{
			SetID:       p.SetID,
			WorkoutID:   p.WorkoutID,
			ExerciseID:  p.ExerciseID,
			Reps:        p.Reps,
			Weight:      p.Weight,
			CompletedAt: p.CompletedAt,
		})

	case model.EventSetUpdated:
		var p model.SetUpdatedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return r.skipUndecodable(e, err)
		}
		set, err := q.GetSetProjection(ctx, p.SetID)
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("SetUpdated for unknown set", "set_id", p.SetID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading set %s: %w", p.SetID, err)
		}
		if p.Reps != nil {
			set.Reps = *p.Reps
		}
		if p.Weight != nil {
			set.Weight = *p.Weight
		}
		if p.CompletedAt != nil {
			set.CompletedAt = *p.CompletedAt
		}
		return q.UpsertSetProjection(ctx, set)

	case model.EventSetDeleted:
		var p model.SetDeletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return r.skipUndecodable(e, err)
		}
		return q.DeleteSetProjection(ctx, p.SetID)

	default:
		r.logger.Warn("skipping event of unknown type", "event_type", e.EventType, "event_id", e.EventID)
		return nil
	}
}

func (r *Rebuilder) skipUndecodable(e model.Event, err error) error {
	r.logger.Warn("skipping event with undecodable payload",
		"event_id", e.EventID, "event_type", e.EventType, "error", err)
	return nil
}
