// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestValidatePayloadKnownTypes(t *testing.T) {
	workoutID := uuid.NewString()
	exerciseID := uuid.NewString()
	setID := uuid.NewString()

	tests := []struct {
		name      string
		eventType string
		payload   string
		wantErr   bool
	}{
		{
			name:      "workout started valid",
			eventType: EventWorkoutStarted,
			payload:   `{"workout_id":"` + workoutID + `","started_at":"2026-01-05T10:00:00Z"}`,
		},
		{
			name:      "workout started missing timestamp",
			eventType: EventWorkoutStarted,
			payload:   `{"workout_id":"` + workoutID + `"}`,
			wantErr:   true,
		},
		{
			name:      "workout started bad uuid",
			eventType: EventWorkoutStarted,
			payload:   `{"workout_id":"not-a-uuid","started_at":"2026-01-05T10:00:00Z"}`,
			wantErr:   true,
		},
		{
			name:      "workout ended valid",
			eventType: EventWorkoutEnded,
			payload:   `{"workout_id":"` + workoutID + `","ended_at":"2026-01-05T11:00:00Z"}`,
		},
		{
			name:      "workout cancelled valid",
			eventType: EventWorkoutCancelled,
			payload:   `{"workout_id":"` + workoutID + `"}`,
		},
		{
			name:      "exercise added valid",
			eventType: EventExerciseAdded,
			payload:   `{"workout_id":"` + workoutID + `","exercise_id":"` + exerciseID + `","exercise_name":"Bench Press"}`,
		},
		{
			name:      "exercise added missing name",
			eventType: EventExerciseAdded,
			payload:   `{"workout_id":"` + workoutID + `","exercise_id":"` + exerciseID + `"}`,
			wantErr:   true,
		},
		{
			name:      "set completed valid",
			eventType: EventSetCompleted,
			payload: `{"workout_id":"` + workoutID + `","exercise_id":"` + exerciseID + `","set_id":"` + setID +
				`","reps":10,"weight":100.0,"completed_at":"2026-01-05T10:30:00Z"}`,
		},
		{
			name:      "set completed zero reps allowed",
			eventType: EventSetCompleted,
			payload: `{"workout_id":"` + workoutID + `","exercise_id":"` + exerciseID + `","set_id":"` + setID +
				`","reps":0,"weight":0,"completed_at":"2026-01-05T10:30:00Z"}`,
		},
		{
			name:      "set completed negative reps",
			eventType: EventSetCompleted,
			payload: `{"workout_id":"` + workoutID + `","exercise_id":"` + exerciseID + `","set_id":"` + setID +
				`","reps":-1,"weight":100,"completed_at":"2026-01-05T10:30:00Z"}`,
			wantErr: true,
		},
		{
			name:      "set completed negative weight",
			eventType: EventSetCompleted,
			payload: `{"workout_id":"` + workoutID + `","exercise_id":"` + exerciseID + `","set_id":"` + setID +
				`","reps":5,"weight":-10,"completed_at":"2026-01-05T10:30:00Z"}`,
			wantErr: true,
		},
		{
			name:      "set updated partial",
			eventType: EventSetUpdated,
			payload:   `{"set_id":"` + setID + `","reps":12}`,
		},
		{
			name:      "set updated only id",
			eventType: EventSetUpdated,
			payload:   `{"set_id":"` + setID + `"}`,
		},
		{
			name:      "set updated negative reps",
			eventType: EventSetUpdated,
			payload:   `{"set_id":"` + setID + `","reps":-3}`,
			wantErr:   true,
		},
		{
			name:      "set deleted valid",
			eventType: EventSetDeleted,
			payload:   `{"set_id":"` + setID + `"}`,
		},
		{
			name:      "set deleted missing id",
			eventType: EventSetDeleted,
			payload:   `{}`,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.eventType, json.RawMessage(tt.payload))
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePayloadUnknownType(t *testing.T) {
	err := ValidatePayload("MealLogged", json.RawMessage(`{}`))
	if !errors.Is(err, ErrEventTypeUnknown) {
		t.Errorf("err = %v, want ErrEventTypeUnknown", err)
	}
}

func TestValidateEvent(t *testing.T) {
	valid := Event{
		EventID:        uuid.NewString(),
		EventType:      EventWorkoutCancelled,
		Payload:        json.RawMessage(`{"workout_id":"` + uuid.NewString() + `"}`),
		UserID:         uuid.NewString(),
		DeviceID:       uuid.NewString(),
		SequenceNumber: 1,
	}
	if err := ValidateEvent(valid); err != nil {
		t.Fatalf("ValidateEvent: %v", err)
	}

	zeroSeq := valid
	zeroSeq.SequenceNumber = 0
	if err := ValidateEvent(zeroSeq); err == nil {
		t.Error("expected error for sequence_number = 0")
	}

	badID := valid
	badID.EventID = "not-a-uuid"
	if err := ValidateEvent(badID); err == nil {
		t.Error("expected error for malformed event_id")
	}

	badCorrelation := valid
	badCorrelation.CorrelationID = "nope"
	if err := ValidateEvent(badCorrelation); err == nil {
		t.Error("expected error for malformed correlation_id")
	}

	noPayload := valid
	noPayload.Payload = nil
	if err := ValidateEvent(noPayload); err == nil {
		t.Error("expected error for missing payload")
	}
}
