// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment should default to true")
	}
	if cfg.CacheType != "memory" {
		t.Errorf("CacheType = %q, want memory", cfg.CacheType)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("LIFTSYNC_SERVER_PORT", "99999")
	if _, err := Load(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestLoadRejectsRedisWithoutURL(t *testing.T) {
	t.Setenv("LIFTSYNC_CACHE_TYPE", "redis")
	if _, err := Load(); err == nil {
		t.Error("expected error for redis cache without URL")
	}
}

func TestTokenMap(t *testing.T) {
	t.Setenv("LIFTSYNC_AUTH_TOKENS", "tok1:user1, tok2:user2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tokens, err := cfg.TokenMap()
	if err != nil {
		t.Fatalf("TokenMap: %v", err)
	}
	if tokens["tok1"] != "user1" || tokens["tok2"] != "user2" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestTokenMapMalformed(t *testing.T) {
	t.Setenv("LIFTSYNC_AUTH_TOKENS", "just-a-token")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed token pair")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
