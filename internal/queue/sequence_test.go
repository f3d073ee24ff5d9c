// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/model"
)

func TestSequenceGeneratorMonotonic(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	device := uuid.NewString()

	gen, err := NewSequenceGenerator(ctx, q, device)
	if err != nil {
		t.Fatalf("NewSequenceGenerator: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := gen.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
}

func TestSequenceGeneratorSurvivesRestart(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	device := uuid.NewString()
	user := uuid.NewString()

	gen, err := NewSequenceGenerator(ctx, q, device)
	if err != nil {
		t.Fatalf("NewSequenceGenerator: %v", err)
	}

	var lastSeq int64
	var ids []string
	var events []model.Event
	for i := 0; i < 3; i++ {
		seq, err := gen.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		lastSeq = seq
		e := testEvent(device, user, seq)
		events = append(events, e)
		ids = append(ids, e.EventID)
	}
	if err := q.Enqueue(ctx, events); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Simulate a full round trip: the synced rows are deleted, then the
	// process restarts. The generator must still not reuse numbers.
	if err := q.MarkSyncing(ctx, ids); err != nil {
		t.Fatalf("MarkSyncing: %v", err)
	}
	if err := q.MarkSynced(ctx, ids); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	restarted, err := NewSequenceGenerator(ctx, q, device)
	if err != nil {
		t.Fatalf("NewSequenceGenerator after restart: %v", err)
	}
	next, err := restarted.Next(ctx)
	if err != nil {
		t.Fatalf("Next after restart: %v", err)
	}
	if next != lastSeq+1 {
		t.Errorf("Next after restart = %d, want %d", next, lastSeq+1)
	}
}

func TestSequenceGeneratorPerDevice(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	genA, err := NewSequenceGenerator(ctx, q, uuid.NewString())
	if err != nil {
		t.Fatalf("NewSequenceGenerator: %v", err)
	}
	genB, err := NewSequenceGenerator(ctx, q, uuid.NewString())
	if err != nil {
		t.Fatalf("NewSequenceGenerator: %v", err)
	}

	if _, err := genA.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := genA.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	got, err := genB.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != 1 {
		t.Errorf("device B first sequence = %d, want 1", got)
	}
}
