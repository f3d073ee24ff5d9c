// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/olegiv/liftsync-go/internal/model"
)

// Queue is the durable client-side event queue. Every mutation runs in a
// transaction; events leave the queue only through MarkSynced.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Queue over an opened and migrated queue database.
func New(db *sql.DB, logger *slog.Logger) *Queue {
	return &Queue{db: db, logger: logger}
}

// Stats holds per-status row counts.
type Stats struct {
	Pending int64 `json:"pending"`
	Syncing int64 `json:"syncing"`
	Failed  int64 `json:"failed"`
}

// Total returns the number of staged events across all statuses.
func (s Stats) Total() int64 {
	return s.Pending + s.Syncing + s.Failed
}

// Enqueue stages a batch of events in one transaction. Re-enqueueing an
// existing event_id is a no-op: the stored row keeps its status and retry
// count.
func (q *Queue) Enqueue(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning enqueue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		var correlationID sql.NullString
		if e.CorrelationID != "" {
			correlationID = sql.NullString{String: e.CorrelationID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO queue_events (event_id, event_type, payload, user_id, device_id, sequence_number, correlation_id, created_at, status, retry_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT (event_id) DO NOTHING`,
			e.EventID, e.EventType, string(e.Payload), e.UserID, e.DeviceID,
			e.SequenceNumber, correlationID, e.CreatedAt.UTC(), model.StatusPending)
		if err != nil {
			return fmt.Errorf("enqueueing event %s: %w", e.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing enqueue: %w", err)
	}
	return nil
}

// GetPending returns pending events for the identity pair in
// sequence_number order.
func (q *Queue) GetPending(ctx context.Context, deviceID, userID string) ([]model.QueuedEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT event_id, event_type, payload, user_id, device_id, sequence_number, correlation_id, created_at, status, retry_count
		FROM queue_events
		WHERE status = ? AND device_id = ? AND user_id = ?
		ORDER BY sequence_number`,
		model.StatusPending, deviceID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying pending events: %w", err)
	}
	defer rows.Close()

	var events []model.QueuedEvent
	for rows.Next() {
		var (
			e             model.QueuedEvent
			payload       string
			correlationID sql.NullString
		)
		err := rows.Scan(&e.EventID, &e.EventType, &payload, &e.UserID, &e.DeviceID,
			&e.SequenceNumber, &correlationID, &e.CreatedAt, &e.Status, &e.RetryCount)
		if err != nil {
			return nil, fmt.Errorf("scanning queued event: %w", err)
		}
		e.Payload = []byte(payload)
		if correlationID.Valid {
			e.CorrelationID = correlationID.String
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending events: %w", err)
	}
	return events, nil
}

// MarkSyncing transitions the given events from pending to syncing. This is
// the gate that hides events from a concurrent GetPending: each event is
// handed to at most one in-flight sync attempt.
func (q *Queue) MarkSyncing(ctx context.Context, eventIDs []string) error {
	return q.setStatus(ctx, eventIDs, model.StatusPending, model.StatusSyncing)
}

// MarkSynced deletes the given events. This is the only operation that
// removes events from the queue.
func (q *Queue) MarkSynced(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query := `DELETE FROM queue_events WHERE event_id IN (` + placeholders(len(eventIDs)) + `)`
	if _, err := q.db.ExecContext(ctx, query, idArgs(eventIDs)...); err != nil {
		return fmt.Errorf("deleting synced events: %w", err)
	}
	return nil
}

// MarkFailed increments each event's retry count and returns it to pending,
// or parks it in failed once the retry budget is exhausted. The whole id
// set is updated in a single statement, so the transition is atomic: a
// storage fault leaves every row untouched.
func (q *Queue) MarkFailed(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query := `
		UPDATE queue_events
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END
		WHERE event_id IN (` + placeholders(len(eventIDs)) + `)`
	args := append([]any{model.MaxRetries, model.StatusFailed, model.StatusPending}, idArgs(eventIDs)...)
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking events failed: %w", err)
	}
	return nil
}

// ResetFailed returns failed events to pending with a fresh retry budget.
// A non-empty userID scopes the reset to that user.
func (q *Queue) ResetFailed(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE queue_events SET status = ?, retry_count = 0 WHERE status = ?`
	args := []any{model.StatusPending, model.StatusFailed}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("resetting failed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

// RewriteUserID reattributes every staged event from oldUserID to
// newUserID, across all statuses. Used during account merge; device ids and
// sequence numbers are untouched. Returns the number of rows changed.
func (q *Queue) RewriteUserID(ctx context.Context, oldUserID, newUserID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE queue_events SET user_id = ? WHERE user_id = ?`, newUserID, oldUserID)
	if err != nil {
		return 0, fmt.Errorf("rewriting user id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	if n > 0 {
		q.logger.Info("rewrote queue ownership", "from", oldUserID, "to", newUserID, "events", n)
	}
	return n, nil
}

// RecoverSyncing returns events stranded in syncing by a crash to pending.
// Whether they reached the server is unknowable here; server-side
// idempotency absorbs the potential duplicate delivery.
func (q *Queue) RecoverSyncing(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE queue_events SET status = ? WHERE status = ?`,
		model.StatusPending, model.StatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("recovering syncing events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	if n > 0 {
		q.logger.Warn("recovered events stranded in syncing", "events", n)
	}
	return n, nil
}

// Stats reports row counts by status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queue_events GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("querying queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scanning queue stats: %w", err)
		}
		switch status {
		case model.StatusPending:
			stats.Pending = count
		case model.StatusSyncing:
			stats.Syncing = count
		case model.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterating queue stats: %w", err)
	}
	return stats, nil
}

// setStatus flips status for the id set in one statement, restricted to
// rows currently in from.
func (q *Queue) setStatus(ctx context.Context, eventIDs []string, from, to string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query := `UPDATE queue_events SET status = ? WHERE status = ? AND event_id IN (` +
		placeholders(len(eventIDs)) + `)`
	args := append([]any{to, from}, idArgs(eventIDs)...)
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("transitioning events %s to %s: %w", from, to, err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
