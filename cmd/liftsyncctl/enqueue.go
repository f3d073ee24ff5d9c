// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/queue"
)

// enqueueInput is one event as authored by the producer. Identity,
// event_id, sequencing and created_at are stamped here.
type enqueueInput struct {
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

func newEnqueueCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Stage events in the local queue",
		Long: `Reads a JSON array of events ({"event_type", "payload", "correlation_id"?})
from stdin or --file, stamps each with a fresh event_id and the next
sequence number for the device, and stages them durably.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deviceID, err := requireDevice()
			if err != nil {
				return err
			}
			userID := resolveUser(deviceID)

			var in io.Reader = os.Stdin
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("opening input: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			var inputs []enqueueInput
			if err := json.NewDecoder(in).Decode(&inputs); err != nil {
				return fmt.Errorf("%w: decoding events: %v", errValidation, err)
			}
			if len(inputs) == 0 {
				return fmt.Errorf("%w: no events to enqueue", errValidation)
			}

			logger := newLogger()
			q, db, err := openQueue(logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx := cmd.Context()
			gen, err := queue.NewSequenceGenerator(ctx, q, deviceID)
			if err != nil {
				return err
			}

			events := make([]model.Event, 0, len(inputs))
			for _, input := range inputs {
				seq, err := gen.Next(ctx)
				if err != nil {
					return err
				}
				e := model.Event{
					EventID:        uuid.NewString(),
					EventType:      input.EventType,
					Payload:        input.Payload,
					UserID:         userID,
					DeviceID:       deviceID,
					SequenceNumber: seq,
					CorrelationID:  input.CorrelationID,
					CreatedAt:      time.Now().UTC(),
				}
				if err := model.ValidateEvent(e); err != nil {
					return fmt.Errorf("%w: event %d (%s): %v", errValidation, len(events)+1, input.EventType, err)
				}
				events = append(events, e)
			}

			if err := q.Enqueue(ctx, events); err != nil {
				return err
			}

			fmt.Printf("saved locally; will sync when online (%d events)\n", len(events))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "read events from a file instead of stdin")
	return cmd
}
