// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/queue"
	"github.com/olegiv/liftsync-go/internal/testutil"
)

// fakeTransport scripts transport outcomes and records submitted batches.
type fakeTransport struct {
	mu       sync.Mutex
	err      error
	block    chan struct{} // when set, Sync waits until closed
	requests []model.SyncRequest
}

func (f *fakeTransport) Sync(_ context.Context, req model.SyncRequest) (model.SyncResponse, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return model.SyncResponse{}, err
	}

	var last *int64
	for _, e := range req.Events {
		if last == nil || e.SequenceNumber > *last {
			seq := e.SequenceNumber
			last = &seq
		}
	}
	return model.SyncResponse{
		AckCursor:        model.AckCursor{DeviceID: req.DeviceID, LastAckedSequence: last},
		AcceptedCount:    len(req.Events),
		RejectedEventIDs: []string{},
	}, nil
}

func (f *fakeTransport) Merge(context.Context, string) (model.MergeResponse, error) {
	return model.MergeResponse{}, nil
}

func newTestCoordinator(t *testing.T, transport Transport) (*Coordinator, *queue.Queue) {
	t.Helper()
	db := testutil.TestQueueDB(t)
	q := queue.New(db, testutil.TestLoggerSilent())
	return NewCoordinator(q, transport, testutil.TestLoggerSilent()), q
}

func stageEvents(t *testing.T, q *queue.Queue, deviceID, userID string, n int) []model.Event {
	t.Helper()
	var events []model.Event
	for i := 1; i <= n; i++ {
		events = append(events, model.Event{
			EventID:        uuid.NewString(),
			EventType:      model.EventWorkoutCancelled,
			Payload:        json.RawMessage(`{"workout_id":"` + uuid.NewString() + `"}`),
			UserID:         userID,
			DeviceID:       deviceID,
			SequenceNumber: int64(i),
			CreatedAt:      time.Now().UTC(),
		})
	}
	if err := q.Enqueue(context.Background(), events); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return events
}

func TestSyncDrainsQueue(t *testing.T) {
	transport := &fakeTransport{}
	c, q := newTestCoordinator(t, transport)
	ctx := context.Background()

	device := uuid.NewString()
	user := uuid.NewString()
	stageEvents(t, q, device, user, 4)

	result, err := c.Sync(ctx, device, user)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 4 {
		t.Errorf("Synced = %d, want 4", result.Synced)
	}
	if !result.OK {
		t.Error("OK should be true")
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("queue total = %d, want 0", stats.Total())
	}
}

func TestSyncSendsEventsInSequenceOrder(t *testing.T) {
	transport := &fakeTransport{}
	c, q := newTestCoordinator(t, transport)

	device := uuid.NewString()
	user := uuid.NewString()
	stageEvents(t, q, device, user, 5)

	if _, err := c.Sync(context.Background(), device, user); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(transport.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(transport.requests))
	}
	events := transport.requests[0].Events
	for i := 1; i < len(events); i++ {
		if events[i].SequenceNumber <= events[i-1].SequenceNumber {
			t.Errorf("batch out of order at %d: %d after %d",
				i, events[i].SequenceNumber, events[i-1].SequenceNumber)
		}
	}
}

func TestSyncEmptyQueue(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeTransport{})

	result, err := c.Sync(context.Background(), uuid.NewString(), uuid.NewString())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 0 || !result.OK {
		t.Errorf("result = %+v, want OK with nothing synced", result)
	}
}

func TestSyncSingleFlight(t *testing.T) {
	transport := &fakeTransport{block: make(chan struct{})}
	c, q := newTestCoordinator(t, transport)
	ctx := context.Background()

	device := uuid.NewString()
	user := uuid.NewString()
	stageEvents(t, q, device, user, 1)

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Sync(ctx, device, user)
		firstDone <- err
	}()

	// Wait until the first attempt holds the flag (it is blocked inside the
	// transport call).
	deadline := time.After(2 * time.Second)
	for !c.syncing.Load() {
		select {
		case <-deadline:
			t.Fatal("first sync never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := c.Sync(ctx, device, user)
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second sync err = %v, want ErrSyncInProgress", err)
	}

	close(transport.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first sync: %v", err)
	}
}

func TestSyncFailureReturnsEventsToPending(t *testing.T) {
	transport := &fakeTransport{err: ErrNetworkUnavailable}
	c, q := newTestCoordinator(t, transport)
	ctx := context.Background()

	device := uuid.NewString()
	user := uuid.NewString()
	stageEvents(t, q, device, user, 4)

	result, err := c.Sync(ctx, device, user)
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("err = %v, want ErrNetworkUnavailable", err)
	}
	if result.Failed != 4 {
		t.Errorf("Failed = %d, want 4", result.Failed)
	}

	pending, err := q.GetPending(ctx, device, user)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 4 {
		t.Fatalf("pending = %d, want 4", len(pending))
	}
	for _, e := range pending {
		if e.RetryCount != 1 {
			t.Errorf("RetryCount = %d, want 1", e.RetryCount)
		}
	}
}

func TestSyncRetryBudgetParksEvents(t *testing.T) {
	transport := &fakeTransport{err: ErrNetworkUnavailable}
	c, q := newTestCoordinator(t, transport)
	ctx := context.Background()

	device := uuid.NewString()
	user := uuid.NewString()
	stageEvents(t, q, device, user, 4)

	// Six consecutive failing attempts; after the fifth the events are
	// parked and the sixth finds nothing to send.
	for i := 0; i < 6; i++ {
		_, err := c.Sync(ctx, device, user)
		if i < model.MaxRetries && !errors.Is(err, ErrNetworkUnavailable) {
			t.Fatalf("attempt %d err = %v, want ErrNetworkUnavailable", i+1, err)
		}
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Failed != 4 {
		t.Errorf("Failed = %d, want 4", stats.Failed)
	}
	if stats.Pending != 0 {
		t.Errorf("Pending = %d, want 0", stats.Pending)
	}

	// Reset restores eligibility and a working transport drains the queue.
	if _, err := q.ResetFailed(ctx, user); err != nil {
		t.Fatalf("ResetFailed: %v", err)
	}
	transport.mu.Lock()
	transport.err = nil
	transport.mu.Unlock()

	result, err := c.Sync(ctx, device, user)
	if err != nil {
		t.Fatalf("Sync after reset: %v", err)
	}
	if result.Synced != 4 {
		t.Errorf("Synced = %d, want 4", result.Synced)
	}

	stats, err = q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("queue total = %d, want 0", stats.Total())
	}
}

func TestRecoverRestoresStrandedEvents(t *testing.T) {
	transport := &fakeTransport{}
	c, q := newTestCoordinator(t, transport)
	ctx := context.Background()

	device := uuid.NewString()
	user := uuid.NewString()
	events := stageEvents(t, q, device, user, 2)

	// Simulate a crash mid-sync: rows were marked syncing and the process
	// died before settling them.
	ids := []string{events[0].EventID, events[1].EventID}
	if err := q.MarkSyncing(ctx, ids); err != nil {
		t.Fatalf("MarkSyncing: %v", err)
	}

	if err := c.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	result, err := c.Sync(ctx, device, user)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 2 {
		t.Errorf("Synced = %d, want 2 (no event lost across restart)", result.Synced)
	}
}
