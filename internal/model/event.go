// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the canonical event record carried between the
// client queue and the server log, the event type tags, and the typed
// payload schemas enforced at both boundaries.
package model

import (
	"encoding/json"
	"time"
)

// Event types understood by the projector.
const (
	EventWorkoutStarted   = "WorkoutStarted"
	EventWorkoutEnded     = "WorkoutEnded"
	EventWorkoutCancelled = "WorkoutCancelled"
	EventExerciseAdded    = "ExerciseAdded"
	EventSetCompleted     = "SetCompleted"
	EventSetUpdated       = "SetUpdated"
	EventSetDeleted       = "SetDeleted"
)

// KnownEventTypes lists every event type accepted at ingestion.
var KnownEventTypes = map[string]bool{
	EventWorkoutStarted:   true,
	EventWorkoutEnded:     true,
	EventWorkoutCancelled: true,
	EventExerciseAdded:    true,
	EventSetCompleted:     true,
	EventSetUpdated:       true,
	EventSetDeleted:       true,
}

// Workout projection statuses.
const (
	WorkoutStatusInProgress = "in_progress"
	WorkoutStatusCompleted  = "completed"
	WorkoutStatusCancelled  = "cancelled"
)

// Event is the atomic unit of the sync protocol. The event_id is the
// idempotency key; (device_id, sequence_number) is the replay order.
// Payload stays raw JSON until a boundary decodes it against the schema
// for its event type.
type Event struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	UserID         string          `json:"user_id"`
	DeviceID       string          `json:"device_id"`
	SequenceNumber int64           `json:"sequence_number"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Queue statuses for events staged on the client.
const (
	StatusPending = "pending"
	StatusSyncing = "syncing"
	StatusSynced  = "synced"
	StatusFailed  = "failed"
)

// MaxRetries is the retry budget: an event that fails this many sync
// attempts is parked in the failed status until explicitly reset.
const MaxRetries = 5

// QueuedEvent is an Event plus the client-local queue state.
type QueuedEvent struct {
	Event
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
}

// WorkoutProjection is a read-model row derived purely from the log.
type WorkoutProjection struct {
	WorkoutID string     `json:"workout_id"`
	UserID    string     `json:"user_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`
}

// SetProjection is a read-model row for one completed set. Volume is
// computed by readers, never stored.
type SetProjection struct {
	SetID       string    `json:"set_id"`
	WorkoutID   string    `json:"workout_id"`
	ExerciseID  string    `json:"exercise_id"`
	Reps        int       `json:"reps"`
	Weight      float64   `json:"weight"`
	CompletedAt time.Time `json:"completed_at"`
}
