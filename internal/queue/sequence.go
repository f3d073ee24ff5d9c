// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"fmt"
	"sync"
)

// SequenceGenerator mints strictly increasing sequence numbers for one
// device. The high-water mark is written through to sequence_state on every
// allocation and re-read at startup, so numbers survive both restarts and
// the deletion of synced rows. The wall clock is never consulted.
type SequenceGenerator struct {
	mu       sync.Mutex
	q        *Queue
	deviceID string
	last     int64
}

// NewSequenceGenerator seeds a generator for deviceID from the queue
// database. The seed is the larger of the persisted high-water mark and the
// highest sequence still staged for the device.
func NewSequenceGenerator(ctx context.Context, q *Queue, deviceID string) (*SequenceGenerator, error) {
	var persisted int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(last_sequence), 0) FROM sequence_state WHERE device_id = ?`,
		deviceID).Scan(&persisted)
	if err != nil {
		return nil, fmt.Errorf("reading sequence state: %w", err)
	}

	var staged int64
	err = q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM queue_events WHERE device_id = ?`,
		deviceID).Scan(&staged)
	if err != nil {
		return nil, fmt.Errorf("seeding sequence generator: %w", err)
	}

	last := persisted
	if staged > last {
		last = staged
	}
	return &SequenceGenerator{q: q, deviceID: deviceID, last: last}, nil
}

// Next allocates the next sequence number for the device and persists the
// new high-water mark before returning it.
func (g *SequenceGenerator) Next(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.last + 1
	_, err := g.q.db.ExecContext(ctx, `
		INSERT INTO sequence_state (device_id, last_sequence) VALUES (?, ?)
		ON CONFLICT (device_id) DO UPDATE SET last_sequence = excluded.last_sequence`,
		g.deviceID, n)
	if err != nil {
		return 0, fmt.Errorf("persisting sequence state: %w", err)
	}

	g.last = n
	return n, nil
}

// DeviceID returns the device this generator serves.
func (g *SequenceGenerator) DeviceID() string {
	return g.deviceID
}
