// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/identity"
)

func TestIdentityMiddleware(t *testing.T) {
	userID := uuid.NewString()
	provider := identity.NewStaticProvider(map[string]string{"tok": userID})

	var got identity.Identity
	var present bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Identity(provider)(next)

	// No header: anonymous pass-through.
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", rec.Code)
	}
	if present {
		t.Error("anonymous request should carry no identity")
	}

	// Valid token: identity resolved.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
	if !present || got.UserID != userID || !got.Authenticated {
		t.Errorf("identity = %+v present=%v, want authenticated %q", got, present, userID)
	}

	// Bad token: rejected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}

	// Malformed header: rejected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "tok")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("malformed header status = %d, want 401", rec.Code)
	}
}
