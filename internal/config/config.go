// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"LIFTSYNC_DB_PATH" envDefault:"./data/liftsync.db"`
	ServerHost string `env:"LIFTSYNC_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"LIFTSYNC_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"LIFTSYNC_ENV" envDefault:"development"`
	LogLevel   string `env:"LIFTSYNC_LOG_LEVEL" envDefault:"info"`

	// RequestTimeout bounds every request; on expiry the transaction rolls back.
	RequestTimeout time.Duration `env:"LIFTSYNC_REQUEST_TIMEOUT" envDefault:"30s"`

	// RebuildSchedule is a cron expression for background projection
	// rebuilds. Empty disables the scheduler.
	RebuildSchedule string `env:"LIFTSYNC_REBUILD_SCHEDULE" envDefault:"@hourly"`

	// Cache configuration
	CacheType   string        `env:"LIFTSYNC_CACHE_TYPE" envDefault:"memory"` // memory or redis
	RedisURL    string        `env:"LIFTSYNC_REDIS_URL"`
	CachePrefix string        `env:"LIFTSYNC_CACHE_PREFIX" envDefault:"liftsync:"`
	CacheTTL    time.Duration `env:"LIFTSYNC_CACHE_TTL" envDefault:"5m"`

	// AuthTokens configures the static identity provider as
	// "token:user_id" pairs separated by commas. Production deployments
	// replace the static provider entirely.
	AuthTokens string `env:"LIFTSYNC_AUTH_TOKENS"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// SlogLevel maps the configured log level onto slog.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TokenMap parses AuthTokens into token -> user id pairs.
func (c Config) TokenMap() (map[string]string, error) {
	tokens := make(map[string]string)
	if c.AuthTokens == "" {
		return tokens, nil
	}
	for _, pair := range strings.Split(c.AuthTokens, ",") {
		token, userID, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("malformed auth token pair %q", pair)
		}
		tokens[token] = userID
	}
	return tokens, nil
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("LIFTSYNC_SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}

	if cfg.CacheType != "memory" && cfg.CacheType != "redis" {
		return nil, fmt.Errorf("LIFTSYNC_CACHE_TYPE must be memory or redis, got %q", cfg.CacheType)
	}
	if cfg.CacheType == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("LIFTSYNC_REDIS_URL is required when LIFTSYNC_CACHE_TYPE=redis")
	}

	if _, err := cfg.TokenMap(); err != nil {
		return nil, err
	}

	return cfg, nil
}
