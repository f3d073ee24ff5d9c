// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the server-side business logic: idempotent
// event ingestion and user account merging.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/projection"
	"github.com/olegiv/liftsync-go/internal/store"
)

// SyncService validates incoming batches and appends them to the event log
// with exactly-once effect. The unique constraint on event_id is the
// linearization point; no application-level lock exists.
type SyncService struct {
	db        *sql.DB
	rebuilder *projection.Rebuilder
	logger    *slog.Logger
	now       func() time.Time
}

// NewSyncService creates a SyncService. The rebuilder is used for the
// best-effort incremental projection update after a successful ingest.
func NewSyncService(db *sql.DB, rebuilder *projection.Rebuilder, logger *slog.Logger) *SyncService {
	return &SyncService{db: db, rebuilder: rebuilder, logger: logger, now: time.Now}
}

// SyncResult is the outcome of one ingested batch.
type SyncResult struct {
	AcceptedCount     int
	RejectedCount     int
	LastAckedSequence *int64
	RejectedEventIDs  []string
}

// SyncEvents ingests a batch for (deviceID, userID). Events failing
// validation are rejected individually; the rest are inserted in a single
// transaction with INSERT .. ON CONFLICT(event_id) DO NOTHING, so a
// redelivered event is counted accepted without a second row. A batch whose
// sequence numbers are not strictly ascending is rejected whole: the client
// contract sends each device's events in order.
func (s *SyncService) SyncEvents(ctx context.Context, deviceID, userID string, events []model.SyncEventRequest) (SyncResult, error) {
	if len(events) == 0 {
		return SyncResult{RejectedEventIDs: []string{}}, nil
	}

	result := SyncResult{RejectedEventIDs: []string{}}
	valid := make([]model.SyncEventRequest, 0, len(events))

	for _, e := range events {
		candidate := model.Event{
			EventID:        e.EventID,
			EventType:      e.EventType,
			Payload:        e.Payload,
			UserID:         userID,
			DeviceID:       deviceID,
			SequenceNumber: e.SequenceNumber,
			CorrelationID:  e.CorrelationID,
		}
		if err := model.ValidateEvent(candidate); err != nil {
			s.logger.Warn("rejecting event",
				"event_id", e.EventID, "event_type", e.EventType, "error", err)
			result.RejectedCount++
			result.RejectedEventIDs = append(result.RejectedEventIDs, e.EventID)
			continue
		}
		valid = append(valid, e)
	}

	if len(valid) == 0 {
		return result, nil
	}

	// The client contract sends a device's events in sequence order.
	// Checked after per-event validation so a single bad event rejects
	// itself, not the neighbors it was misfiled between.
	if !sequencesAscending(valid) {
		s.logger.Warn("rejecting batch with out-of-order sequence numbers",
			"device_id", deviceID, "events", len(events))
		ids := make([]string, len(valid))
		for i, e := range valid {
			ids[i] = e.EventID
		}
		return SyncResult{
			RejectedCount:    len(events),
			RejectedEventIDs: append(result.RejectedEventIDs, ids...),
		}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SyncResult{}, fmt.Errorf("beginning sync transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := store.New(tx)
	createdAt := s.now().UTC()
	var insertedIDs []string

	for _, e := range valid {
		inserted, err := q.InsertEvent(ctx, store.InsertEventParams{
			EventID:        e.EventID,
			EventType:      e.EventType,
			Payload:        e.Payload,
			UserID:         userID,
			DeviceID:       deviceID,
			SequenceNumber: e.SequenceNumber,
			CorrelationID:  e.CorrelationID,
			CreatedAt:      createdAt,
		})
		if err != nil {
			// Any storage fault aborts the whole batch; the client retries
			// and idempotency absorbs the redelivery.
			return SyncResult{}, err
		}
		if inserted {
			insertedIDs = append(insertedIDs, e.EventID)
		}
		result.AcceptedCount++
		if result.LastAckedSequence == nil || e.SequenceNumber > *result.LastAckedSequence {
			seq := e.SequenceNumber
			result.LastAckedSequence = &seq
		}
	}

	if err := tx.Commit(); err != nil {
		return SyncResult{}, fmt.Errorf("committing sync transaction: %w", err)
	}

	s.logger.Info("batch ingested",
		"device_id", deviceID,
		"user_id", userID,
		"accepted", result.AcceptedCount,
		"rejected", result.RejectedCount,
		"inserted", len(insertedIDs),
	)

	s.updateProjections(ctx, insertedIDs)

	return result, nil
}

// updateProjections applies newly inserted events to the projections.
// Failures are logged and swallowed: the ingest already committed, and the
// rebuild endpoint repairs any drift.
func (s *SyncService) updateProjections(ctx context.Context, insertedIDs []string) {
	if len(insertedIDs) == 0 {
		return
	}

	events, err := store.New(s.db).ListEventsByIDs(ctx, insertedIDs)
	if err != nil {
		s.logger.Error("loading events for projection update", "error", err)
		return
	}
	if err := s.rebuilder.ApplyEvents(ctx, events); err != nil {
		s.logger.Error("updating projections after ingest", "error", err)
	}
}

// sequencesAscending reports whether the batch's sequence numbers are
// strictly increasing. Gaps are fine; duplicates and reordering are not.
func sequencesAscending(events []model.SyncEventRequest) bool {
	for i := 1; i < len(events); i++ {
		if events[i].SequenceNumber <= events[i-1].SequenceNumber {
			return false
		}
	}
	return true
}
