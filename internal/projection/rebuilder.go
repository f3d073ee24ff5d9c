// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package projection derives the read-model tables from the event log.
// Rebuild is the authoritative path: a pure fold of the log in
// (device_id, sequence_number) order inside one transaction, so readers
// observe either the old tables or the new ones, never a mix.
package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/store"
)

// Rebuilder replays the event log into workouts_projection and
// sets_projection.
type Rebuilder struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Rebuilder over the server database.
func New(db *sql.DB, logger *slog.Logger) *Rebuilder {
	return &Rebuilder{db: db, logger: logger}
}

// Result reports what a rebuild wrote.
type Result struct {
	WorkoutsWritten int
	SetsWritten     int
	SkippedEvents   int
	Duration        time.Duration
}

// Rebuild clears the projections (scoped to userID when non-empty) and
// replays the matching slice of the log. Any error rolls the whole
// transaction back, leaving the previous projection state intact.
func (r *Rebuilder) Rebuild(ctx context.Context, userID string) (Result, error) {
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := store.New(tx)

	if err := q.DeleteProjections(ctx, userID); err != nil {
		return Result{}, err
	}

	events, err := q.ListEvents(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	state := newFoldState(r.logger)
	for _, e := range events {
		state.apply(e)
	}

	for _, id := range state.workoutOrder {
		if err := q.UpsertWorkoutProjection(ctx, *state.workouts[id]); err != nil {
			return Result{}, err
		}
	}
	for _, id := range state.setOrder {
		s, ok := state.sets[id]
		if !ok {
			continue // deleted later in the fold
		}
		if err := q.UpsertSetProjection(ctx, *s); err != nil {
			return Result{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing rebuild: %w", err)
	}

	res := Result{
		WorkoutsWritten: len(state.workoutOrder),
		SetsWritten:     state.liveSets(),
		SkippedEvents:   state.skipped,
		Duration:        time.Since(start),
	}
	r.logger.Info("projections rebuilt",
		"scope", scopeLabel(userID),
		"workouts", res.WorkoutsWritten,
		"sets", res.SetsWritten,
		"skipped_events", res.SkippedEvents,
		"duration", res.Duration,
	)
	return res, nil
}

func scopeLabel(userID string) string {
	if userID == "" {
		return "all"
	}
	return userID
}

// foldState accumulates the reduction of the log in memory before the rows
// are written out. Order slices keep writes deterministic.
type foldState struct {
	logger       *slog.Logger
	workouts     map[string]*model.WorkoutProjection
	workoutOrder []string
	sets         map[string]*model.SetProjection
	setOrder     []string
	skipped      int
}

func newFoldState(logger *slog.Logger) *foldState {
	return &foldState{
		logger:   logger,
		workouts: make(map[string]*model.WorkoutProjection),
		sets:     make(map[string]*model.SetProjection),
	}
}

func (s *foldState) liveSets() int {
	n := 0
	for _, id := range s.setOrder {
		if _, ok := s.sets[id]; ok {
			n++
		}
	}
	return n
}

// apply folds one event into the state. Events referencing workouts or sets
// the fold has not seen are skipped with a warning; unknown event types are
// skipped too, so logs written by newer producers still replay.
func (s *foldState) apply(e model.Event) {
	switch e.EventType {
	case model.EventWorkoutStarted:
		var p model.WorkoutStartedPayload
		if !s.decode(e, &p) {
			return
		}
		w, ok := s.workouts[p.WorkoutID]
		if !ok {
			w = &model.WorkoutProjection{WorkoutID: p.WorkoutID, UserID: e.UserID}
			s.workouts[p.WorkoutID] = w
			s.workoutOrder = append(s.workoutOrder, p.WorkoutID)
			w.Status = model.WorkoutStatusInProgress
		}
		w.StartedAt = p.StartedAt

	case model.EventWorkoutEnded:
		var p model.WorkoutEndedPayload
		if !s.decode(e, &p) {
			return
		}
		w, ok := s.workouts[p.WorkoutID]
		if !ok {
			s.logger.Warn("WorkoutEnded for unknown workout", "workout_id", p.WorkoutID)
			s.skipped++
			return
		}
		ended := p.EndedAt
		w.EndedAt = &ended
		w.Status = model.WorkoutStatusCompleted

	case model.EventWorkoutCancelled:
		var p model.WorkoutCancelledPayload
		if !s.decode(e, &p) {
			return
		}
		w, ok := s.workouts[p.WorkoutID]
		if !ok {
			s.logger.Warn("WorkoutCancelled for unknown workout", "workout_id", p.WorkoutID)
			s.skipped++
			return
		}
		w.Status = model.WorkoutStatusCancelled

	case model.EventExerciseAdded:
		// No projection effect; consumed by clients and reporting.

	case model.EventSetCompleted:
		var p model.SetCompletedPayload
		if !s.decode(e, &p) {
			return
		}
		if _, ok := s.workouts[p.WorkoutID]; !ok {
			s.logger.Warn("SetCompleted for unknown workout", "workout_id", p.WorkoutID, "set_id", p.SetID)
			s.skipped++
			return
		}
		if _, ok := s.sets[p.SetID]; !ok {
			s.setOrder = append(s.setOrder, p.SetID)
		}
		s.sets[p.SetID] = &model.SetProjection{
			SetID:       p.SetID,
			WorkoutID:   p.WorkoutID,
			ExerciseID:  p.ExerciseID,
			Reps:        p.Reps,
			Weight:      p.Weight,
			CompletedAt: p.CompletedAt,
		}

	case model.EventSetUpdated:
		var p model.SetUpdatedPayload
		if !s.decode(e, &p) {
			return
		}
		set, ok := s.sets[p.SetID]
		if !ok {
			s.logger.Warn("SetUpdated for unknown set", "set_id", p.SetID)
			s.skipped++
			return
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

	case model.EventSetDeleted:
		var p model.SetDeletedPayload
		if !s.decode(e, &p) {
			return
		}
		if _, ok := s.sets[p.SetID]; !ok {
			s.logger.Warn("SetDeleted for unknown set", "set_id", p.SetID)
			s.skipped++
			return
		}
		delete(s.sets, p.SetID)

	default:
		s.logger.Warn("skipping event of unknown type", "event_type", e.EventType, "event_id", e.EventID)
		s.skipped++
	}
}

func (s *foldState) decode(e model.Event, into any) bool {
	if err := json.Unmarshal(e.Payload, into); err != nil {
		s.logger.Warn("skipping event with undecodable payload",
			"event_id", e.EventID, "event_type", e.EventType, "error", err)
		s.skipped++
		return false
	}
	return true
}
