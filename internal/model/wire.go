// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "encoding/json"

// SyncEventRequest is one event on the wire. The server takes user_id and
// device_id from the enclosing request and stamps created_at at ingestion.
type SyncEventRequest struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	SequenceNumber int64           `json:"sequence_number"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
}

// SyncRequest is the body of POST /api/v1/sync.
type SyncRequest struct {
	DeviceID string             `json:"device_id"`
	UserID   string             `json:"user_id"`
	Events   []SyncEventRequest `json:"events"`
}

// AckCursor proves how far a device's sequence has been accepted.
// LastAckedSequence is null when nothing was accepted.
type AckCursor struct {
	DeviceID          string `json:"device_id"`
	LastAckedSequence *int64 `json:"last_acked_sequence"`
}

// SyncResponse is the body returned by POST /api/v1/sync.
type SyncResponse struct {
	AckCursor        AckCursor `json:"ack_cursor"`
	AcceptedCount    int       `json:"accepted_count"`
	RejectedCount    int       `json:"rejected_count"`
	RejectedEventIDs []string  `json:"rejected_event_ids"`
}

// RebuildResponse is the body returned by POST /api/v1/projections/rebuild.
type RebuildResponse struct {
	WorkoutsWritten int   `json:"workouts_written"`
	SetsWritten     int   `json:"sets_written"`
	DurationMs      int64 `json:"duration_ms"`
}

// MergeRequest is the body of POST /api/v1/users/merge.
type MergeRequest struct {
	AnonymousUserID string `json:"anonymous_user_id"`
}

// MergeResponse is the body returned by POST /api/v1/users/merge.
type MergeResponse struct {
	MergedEventCount int64 `json:"merged_event_count"`
}
