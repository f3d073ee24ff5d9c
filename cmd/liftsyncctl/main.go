// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// liftsyncctl is the client-side sync core as a CLI: a durable local event
// queue, the sync coordinator, and the account-merge driver.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/olegiv/liftsync-go/internal/identity"
	"github.com/olegiv/liftsync-go/internal/queue"
	"github.com/olegiv/liftsync-go/internal/syncer"
)

// Sentinel kinds mapped to exit codes.
var (
	errUsage      = errors.New("usage error")
	errValidation = errors.New("validation error")
)

// Exit codes.
const (
	exitOK         = 0
	exitUsage      = 2
	exitStorage    = 3
	exitValidation = 4
	exitNetwork    = 5
)

var (
	flagDBPath   string
	flagServer   string
	flagToken    string
	flagDeviceID string
	flagUserID   string
	flagTimeout  time.Duration
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "liftsyncctl",
		Short:         "Offline-first workout event queue and sync client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagDBPath, "db", defaultDBPath(), "path to the local queue database")
	root.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "sync server base URL")
	root.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token for authenticated requests")
	root.PersistentFlags().StringVar(&flagDeviceID, "device-id", "", "device identifier (UUID)")
	root.PersistentFlags().StringVar(&flagUserID, "user-id", "", "user identifier; defaults to the device-derived anonymous id")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "request deadline for server calls")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	root.AddCommand(newEnqueueCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newResetFailedCmd())
	root.AddCommand(newMergeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errValidation):
		return exitValidation
	case errors.Is(err, syncer.ErrTimeout), errors.Is(err, syncer.ErrNetworkUnavailable):
		return exitNetwork
	default:
		return exitStorage
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./liftsync-queue.db"
	}
	return filepath.Join(home, ".liftsync", "queue.db")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openQueue opens and migrates the local queue database.
func openQueue(logger *slog.Logger) (*queue.Queue, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(flagDBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating queue directory: %w", err)
	}
	db, err := queue.NewDB(flagDBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := queue.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return queue.New(db, logger), db, nil
}

// requireDevice validates the --device-id flag.
func requireDevice() (string, error) {
	if flagDeviceID == "" {
		return "", fmt.Errorf("%w: --device-id is required", errUsage)
	}
	return flagDeviceID, nil
}

// resolveUser returns the acting user id: the explicit --user-id, or the
// anonymous identity derived from the device.
func resolveUser(deviceID string) string {
	if flagUserID != "" {
		return flagUserID
	}
	return identity.AnonymousUserID(deviceID)
}

func newTransport() *syncer.HTTPTransport {
	return syncer.NewHTTPTransport(flagServer, flagToken, flagTimeout)
}
