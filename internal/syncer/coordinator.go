// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/queue"
)

// ErrSyncInProgress is returned when a sync attempt finds another already
// running. The losing caller gets no side effects and must not queue up.
var ErrSyncInProgress = errors.New("sync already in progress")

// Coordinator runs end-to-end sync attempts: extract a pending batch, mark
// it syncing, submit it, and settle the queue from the outcome. At most one
// attempt runs at a time per process.
type Coordinator struct {
	queue     *queue.Queue
	transport Transport
	logger    *slog.Logger
	syncing   atomic.Bool
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(q *queue.Queue, transport Transport, logger *slog.Logger) *Coordinator {
	return &Coordinator{queue: q, transport: transport, logger: logger}
}

// Result summarizes one sync attempt.
type Result struct {
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Recover returns events stranded in syncing by a previous crash to
// pending. Call once at process start, before the first Sync: whether those
// events reached the server is unknowable, and the server's idempotency
// absorbs the redelivery.
func (c *Coordinator) Recover(ctx context.Context) error {
	_, err := c.queue.RecoverSyncing(ctx)
	return err
}

// Sync pushes the pending events for (deviceID, userID) to the server.
// Concurrent callers beyond the first receive ErrSyncInProgress
// immediately, with no side effects.
func (c *Coordinator) Sync(ctx context.Context, deviceID, userID string) (Result, error) {
	if !c.syncing.CompareAndSwap(false, true) {
		return Result{OK: false, Message: "sync already in progress"}, ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	pending, err := c.queue.GetPending(ctx, deviceID, userID)
	if err != nil {
		return Result{OK: false, Message: err.Error()}, err
	}
	if len(pending) == 0 {
		return Result{OK: true, Message: "nothing to sync"}, nil
	}

	ids := make([]string, len(pending))
	events := make([]model.SyncEventRequest, len(pending))
	for i, e := range pending {
		ids[i] = e.EventID
		events[i] = model.SyncEventRequest{
			EventID:        e.EventID,
			EventType:      e.EventType,
			Payload:        e.Payload,
			SequenceNumber: e.SequenceNumber,
			CorrelationID:  e.CorrelationID,
		}
	}

	// Hide the batch from any concurrent extraction before the network
	// call. Even if the in-memory flag were bypassed across a restart, the
	// syncing status keeps these rows out of the next GetPending.
	if err := c.queue.MarkSyncing(ctx, ids); err != nil {
		return Result{OK: false, Message: err.Error()}, err
	}

	resp, err := c.transport.Sync(ctx, model.SyncRequest{
		DeviceID: deviceID,
		UserID:   userID,
		Events:   events,
	})
	if err != nil {
		// Network failure or timeout: the server is the source of truth for
		// whether anything landed. Return the rows to pending and charge a
		// retry; idempotency covers the uncertain case.
		if failErr := c.queue.MarkFailed(ctx, ids); failErr != nil {
			c.logger.Error("marking batch failed", "error", failErr)
		}
		c.logger.Warn("sync attempt failed", "events", len(ids), "error", err)
		return Result{Failed: len(ids), OK: false, Message: err.Error()}, err
	}

	if resp.RejectedCount > 0 {
		// Rejections are schema-level verdicts; resubmitting an identical
		// payload cannot succeed, so the rows are not kept for retry.
		c.logger.Warn("server rejected events",
			"rejected", resp.RejectedCount, "event_ids", resp.RejectedEventIDs)
	}

	if err := c.queue.MarkSynced(ctx, ids); err != nil {
		return Result{Synced: resp.AcceptedCount, OK: false, Message: err.Error()}, err
	}

	c.logger.Info("sync complete",
		"device_id", deviceID,
		"accepted", resp.AcceptedCount,
		"rejected", resp.RejectedCount,
	)
	return Result{Synced: resp.AcceptedCount, Failed: resp.RejectedCount, OK: true}, nil
}
