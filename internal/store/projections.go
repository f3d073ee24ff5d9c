// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/olegiv/liftsync-go/internal/model"
)

// DeleteProjections clears projection rows, scoped to one user when userID
// is non-empty. Sets go first: they hang off workouts.
func (q *Queries) DeleteProjections(ctx context.Context, userID string) error {
	if userID == "" {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM sets_projection`); err != nil {
			return fmt.Errorf("clearing sets projection: %w", err)
		}
		if _, err := q.db.ExecContext(ctx, `DELETE FROM workouts_projection`); err != nil {
			return fmt.Errorf("clearing workouts projection: %w", err)
		}
		return nil
	}

	_, err := q.db.ExecContext(ctx, `
		DELETE FROM sets_projection
		WHERE workout_id IN (SELECT workout_id FROM workouts_projection WHERE user_id = ?)`,
		userID)
	if err != nil {
		return fmt.Errorf("clearing sets projection: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM workouts_projection WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing workouts projection: %w", err)
	}
	return nil
}

// UpsertWorkoutProjection writes one workout row, replacing any previous
// state for the same workout_id.
func (q *Queries) UpsertWorkoutProjection(ctx context.Context, w model.WorkoutProjection) error {
	var endedAt sql.NullTime
	if w.EndedAt != nil {
		endedAt = sql.NullTime{Time: w.EndedAt.UTC(), Valid: true}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO workouts_projection (workout_id, user_id, started_at, ended_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workout_id) DO UPDATE SET
			user_id = excluded.user_id,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			status = excluded.status`,
		w.WorkoutID, w.UserID, w.StartedAt.UTC(), endedAt, w.Status)
	if err != nil {
		return fmt.Errorf("upserting workout projection %s: %w", w.WorkoutID, err)
	}
	return nil
}

// UpsertSetProjection writes one set row, replacing any previous state for
// the same set_id.
func (q *Queries) UpsertSetProjection(ctx context.Context, s model.SetProjection) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sets_projection (set_id, workout_id, exercise_id, reps, weight, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (set_id) DO UPDATE SET
			workout_id = excluded.workout_id,
			exercise_id = excluded.exercise_id,
			reps = excluded.reps,
			weight = excluded.weight,
			completed_at = excluded.completed_at`,
		s.SetID, s.WorkoutID, s.ExerciseID, s.Reps, s.Weight, s.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting set projection %s: %w", s.SetID, err)
	}
	return nil
}

// DeleteSetProjection removes one set row.
func (q *Queries) DeleteSetProjection(ctx context.Context, setID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM sets_projection WHERE set_id = ?`, setID); err != nil {
		return fmt.Errorf("deleting set projection %s: %w", setID, err)
	}
	return nil
}

// GetWorkoutProjection looks up one workout row.
func (q *Queries) GetWorkoutProjection(ctx context.Context, workoutID string) (model.WorkoutProjection, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT workout_id, user_id, started_at, ended_at, status
		FROM workouts_projection WHERE workout_id = ?`, workoutID)
	return scanWorkout(row)
}

// GetSetProjection looks up one set row.
func (q *Queries) GetSetProjection(ctx context.Context, setID string) (model.SetProjection, error) {
	var s model.SetProjection
	err := q.db.QueryRowContext(ctx, `
		SELECT set_id, workout_id, exercise_id, reps, weight, completed_at
		FROM sets_projection WHERE set_id = ?`, setID).
		Scan(&s.SetID, &s.WorkoutID, &s.ExerciseID, &s.Reps, &s.Weight, &s.CompletedAt)
	if err != nil {
		return model.SetProjection{}, err
	}
	return s, nil
}

// ListWorkoutsByUser returns a user's workouts, most recent first.
func (q *Queries) ListWorkoutsByUser(ctx context.Context, userID string) ([]model.WorkoutProjection, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT workout_id, user_id, started_at, ended_at, status
		FROM workouts_projection WHERE user_id = ?
		ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	defer rows.Close()

	var workouts []model.WorkoutProjection
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workouts: %w", err)
	}
	return workouts, nil
}

// ListSetsByWorkout returns a workout's sets in completion order.
func (q *Queries) ListSetsByWorkout(ctx context.Context, workoutID string) ([]model.SetProjection, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT set_id, workout_id, exercise_id, reps, weight, completed_at
		FROM sets_projection WHERE workout_id = ?
		ORDER BY completed_at`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("listing sets: %w", err)
	}
	defer rows.Close()

	var sets []model.SetProjection
	for rows.Next() {
		var s model.SetProjection
		if err := rows.Scan(&s.SetID, &s.WorkoutID, &s.ExerciseID, &s.Reps, &s.Weight, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sets: %w", err)
	}
	return sets, nil
}

// ReassignWorkoutsUser rewrites projection ownership during a user merge.
// Sets follow their workout_id, so only workouts carry user_id.
func (q *Queries) ReassignWorkoutsUser(ctx context.Context, oldUserID, newUserID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE workouts_projection SET user_id = ? WHERE user_id = ?`, newUserID, oldUserID)
	if err != nil {
		return 0, fmt.Errorf("reassigning workouts projection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

func scanWorkout(row rowScanner) (model.WorkoutProjection, error) {
	var (
		w       model.WorkoutProjection
		endedAt sql.NullTime
	)
	if err := row.Scan(&w.WorkoutID, &w.UserID, &w.StartedAt, &endedAt, &w.Status); err != nil {
		return model.WorkoutProjection{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		w.EndedAt = &t
	}
	return w, nil
}
