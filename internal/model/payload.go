// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEventTypeUnknown is returned when an event carries a type outside the
// known set. Ingestion rejects such events; projection skips them.
var ErrEventTypeUnknown = errors.New("unknown event type")

// WorkoutStartedPayload opens a workout.
type WorkoutStartedPayload struct {
	WorkoutID string    `json:"workout_id"`
	StartedAt time.Time `json:"started_at"`
}

// WorkoutEndedPayload completes a workout.
type WorkoutEndedPayload struct {
	WorkoutID string    `json:"workout_id"`
	EndedAt   time.Time `json:"ended_at"`
}

// WorkoutCancelledPayload abandons a workout.
type WorkoutCancelledPayload struct {
	WorkoutID string `json:"workout_id"`
}

// ExerciseAddedPayload records an exercise joining a workout. It carries no
// projection effect; the client and reporting collaborators consume it.
type ExerciseAddedPayload struct {
	WorkoutID    string `json:"workout_id"`
	ExerciseID   string `json:"exercise_id"`
	ExerciseName string `json:"exercise_name"`
}

// SetCompletedPayload records one finished set.
type SetCompletedPayload struct {
	WorkoutID   string    `json:"workout_id"`
	ExerciseID  string    `json:"exercise_id"`
	SetID       string    `json:"set_id"`
	Reps        int       `json:"reps"`
	Weight      float64   `json:"weight"`
	CompletedAt time.Time `json:"completed_at"`
}

// SetUpdatedPayload corrects a previously completed set. Only set_id is
// required; absent fields leave the projection column untouched.
type SetUpdatedPayload struct {
	SetID       string     `json:"set_id"`
	Reps        *int       `json:"reps,omitempty"`
	Weight      *float64   `json:"weight,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SetDeletedPayload removes a set.
type SetDeletedPayload struct {
	SetID string `json:"set_id"`
}

// ValidatePayload decodes raw against the schema for eventType and checks
// its required fields. It returns ErrEventTypeUnknown for types outside the
// known set.
func ValidatePayload(eventType string, raw json.RawMessage) error {
	switch eventType {
	case EventWorkoutStarted:
		var p WorkoutStartedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("workout_id", p.WorkoutID); err != nil {
			return err
		}
		if p.StartedAt.IsZero() {
			return errors.New("started_at is required")
		}

	case EventWorkoutEnded:
		var p WorkoutEndedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("workout_id", p.WorkoutID); err != nil {
			return err
		}
		if p.EndedAt.IsZero() {
			return errors.New("ended_at is required")
		}

	case EventWorkoutCancelled:
		var p WorkoutCancelledPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("workout_id", p.WorkoutID); err != nil {
			return err
		}

	case EventExerciseAdded:
		var p ExerciseAddedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("workout_id", p.WorkoutID); err != nil {
			return err
		}
		if err := requireUUID("exercise_id", p.ExerciseID); err != nil {
			return err
		}
		if p.ExerciseName == "" {
			return errors.New("exercise_name is required")
		}

	case EventSetCompleted:
		var p SetCompletedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("workout_id", p.WorkoutID); err != nil {
			return err
		}
		if err := requireUUID("exercise_id", p.ExerciseID); err != nil {
			return err
		}
		if err := requireUUID("set_id", p.SetID); err != nil {
			return err
		}
		if p.Reps < 0 {
			return errors.New("reps must be >= 0")
		}
		if p.Weight < 0 {
			return errors.New("weight must be >= 0")
		}
		if p.CompletedAt.IsZero() {
			return errors.New("completed_at is required")
		}

	case EventSetUpdated:
		var p SetUpdatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("set_id", p.SetID); err != nil {
			return err
		}
		if p.Reps != nil && *p.Reps < 0 {
			return errors.New("reps must be >= 0")
		}
		if p.Weight != nil && *p.Weight < 0 {
			return errors.New("weight must be >= 0")
		}

	case EventSetDeleted:
		var p SetDeletedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		if err := requireUUID("set_id", p.SetID); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %q", ErrEventTypeUnknown, eventType)
	}

	return nil
}

// ValidateEvent checks the envelope fields of an incoming event and its
// payload. Used by the server at the ingestion boundary and by the client
// when producing events.
func ValidateEvent(e Event) error {
	if err := requireUUID("event_id", e.EventID); err != nil {
		return err
	}
	if e.SequenceNumber <= 0 {
		return errors.New("sequence_number must be positive")
	}
	if e.CorrelationID != "" {
		if err := requireUUID("correlation_id", e.CorrelationID); err != nil {
			return err
		}
	}
	if len(e.Payload) == 0 {
		return errors.New("payload is required")
	}
	return ValidatePayload(e.EventType, e.Payload)
}

func requireUUID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%s is not a valid UUID: %w", field, err)
	}
	return nil
}
