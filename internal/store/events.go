// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olegiv/liftsync-go/internal/model"
)

// InsertEventParams carries one event into the log.
type InsertEventParams struct {
	EventID        string
	EventType      string
	Payload        json.RawMessage
	UserID         string
	DeviceID       string
	SequenceNumber int64
	CorrelationID  string
	CreatedAt      time.Time
}

// InsertEvent appends an event to the log. A conflicting event_id is a
// no-op; the first return value reports whether a row was written.
func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (bool, error) {
	var correlationID sql.NullString
	if arg.CorrelationID != "" {
		correlationID = sql.NullString{String: arg.CorrelationID, Valid: true}
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO events (event_id, event_type, payload, user_id, device_id, sequence_number, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		arg.EventID, arg.EventType, string(arg.Payload), arg.UserID, arg.DeviceID,
		arg.SequenceNumber, correlationID, arg.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting event %s: %w", arg.EventID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// GetEvent looks up a single event by id.
func (q *Queries) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT event_id, event_type, payload, user_id, device_id, sequence_number, correlation_id, created_at
		FROM events WHERE event_id = ?`, eventID)
	return scanEvent(row)
}

// ListEvents streams the full log, or one user's slice of it, in canonical
// (device_id, sequence_number) replay order.
func (q *Queries) ListEvents(ctx context.Context, userID string) ([]model.Event, error) {
	query := `
		SELECT event_id, event_type, payload, user_id, device_id, sequence_number, correlation_id, created_at
		FROM events`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY device_id, sequence_number`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// ListEventsByIDs fetches the given events in replay order.
func (q *Queries) ListEventsByIDs(ctx context.Context, eventIDs []string) ([]model.Event, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT event_id, event_type, payload, user_id, device_id, sequence_number, correlation_id, created_at
		FROM events WHERE event_id IN (` + placeholders(len(eventIDs)) + `)
		ORDER BY device_id, sequence_number`
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events by ids: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// CountEventsByUser reports how many log rows a user owns.
func (q *Queries) CountEventsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// CountMergeConflicts counts (device_id, sequence_number) pairs owned by
// both users. A nonzero count means the merge would violate per-device
// sequence uniqueness.
func (q *Queries) CountMergeConflicts(ctx context.Context, anonUserID, authUserID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM events a
		JOIN events b ON a.device_id = b.device_id AND a.sequence_number = b.sequence_number
		WHERE a.user_id = ? AND b.user_id = ?`,
		anonUserID, authUserID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("probing merge conflicts: %w", err)
	}
	return n, nil
}

// ReassignEventsUser rewrites ownership of every event held by oldUserID.
// Returns the number of rows changed.
func (q *Queries) ReassignEventsUser(ctx context.Context, oldUserID, newUserID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE events SET user_id = ? WHERE user_id = ?`, newUserID, oldUserID)
	if err != nil {
		return 0, fmt.Errorf("reassigning events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e             model.Event
		payload       string
		correlationID sql.NullString
	)
	err := row.Scan(&e.EventID, &e.EventType, &payload, &e.UserID, &e.DeviceID,
		&e.SequenceNumber, &correlationID, &e.CreatedAt)
	if err != nil {
		return model.Event{}, err
	}
	e.Payload = json.RawMessage(payload)
	if correlationID.Valid {
		e.CorrelationID = correlationID.String
	}
	return e, nil
}

func scanEventRows(rows *sql.Rows) (model.Event, error) {
	e, err := scanEvent(rows)
	if err != nil {
		return model.Event{}, fmt.Errorf("scanning event: %w", err)
	}
	return e, nil
}
