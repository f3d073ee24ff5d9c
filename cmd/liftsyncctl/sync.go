// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olegiv/liftsync-go/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending events to the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deviceID, err := requireDevice()
			if err != nil {
				return err
			}
			userID := resolveUser(deviceID)

			logger := newLogger()
			q, db, err := openQueue(logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			coordinator := syncer.NewCoordinator(q, newTransport(), logger)

			ctx := cmd.Context()
			if err := coordinator.Recover(ctx); err != nil {
				return err
			}

			result, err := coordinator.Sync(ctx, deviceID, userID)
			if err != nil {
				if errors.Is(err, syncer.ErrSyncInProgress) {
					return err
				}
				return fmt.Errorf("sync failed (%d events pending retry): %w", result.Failed, err)
			}

			fmt.Printf("synced (%d events)\n", result.Synced)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			q, db, err := openQueue(logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("pending: %d\nsyncing: %d\nfailed:  %d\ntotal:   %d\n",
				stats.Pending, stats.Syncing, stats.Failed, stats.Total())
			return nil
		},
	}
}

func newResetFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-failed",
		Short: "Return failed events to pending with a fresh retry budget",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			q, db, err := openQueue(logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			// Scope to the acting user when a device is given; reset
			// everything otherwise.
			var userID string
			if flagDeviceID != "" {
				userID = resolveUser(flagDeviceID)
			}

			n, err := q.ResetFailed(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Printf("reset %d events\n", n)
			return nil
		},
	}
}
