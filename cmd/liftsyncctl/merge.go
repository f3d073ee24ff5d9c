// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olegiv/liftsync-go/internal/identity"
	"github.com/olegiv/liftsync-go/internal/syncer"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Fold the device's anonymous history into the authenticated account",
		Long: `Runs the account upgrade, in order: rewrite the local queue from the
anonymous identity to the authenticated one, reset failed events, sync the
remaining queue under the new identity, then ask the server to reassign the
already-synced history. Requires --token and --user-id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deviceID, err := requireDevice()
			if err != nil {
				return err
			}
			if flagToken == "" {
				return fmt.Errorf("%w: --token is required for merge", errUsage)
			}
			if flagUserID == "" {
				return fmt.Errorf("%w: --user-id is required for merge", errUsage)
			}

			anonID := identity.AnonymousUserID(deviceID)
			authID := flagUserID
			if anonID == authID {
				return fmt.Errorf("%w: --user-id must differ from the anonymous identity", errUsage)
			}

			logger := newLogger()
			q, db, err := openQueue(logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx := cmd.Context()

			rewritten, err := q.RewriteUserID(ctx, anonID, authID)
			if err != nil {
				return err
			}
			if _, err := q.ResetFailed(ctx, authID); err != nil {
				return err
			}

			transport := newTransport()
			coordinator := syncer.NewCoordinator(q, transport, logger)
			if err := coordinator.Recover(ctx); err != nil {
				return err
			}
			result, err := coordinator.Sync(ctx, deviceID, authID)
			if err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
				return fmt.Errorf("syncing before merge: %w", err)
			}

			resp, err := transport.Merge(ctx, anonID)
			if err != nil {
				return fmt.Errorf("server merge: %w", err)
			}

			fmt.Printf("merged: %d local events rewritten, %d synced, %d server events reassigned\n",
				rewritten, result.Synced, resp.MergedEventCount)
			return nil
		},
	}
}
