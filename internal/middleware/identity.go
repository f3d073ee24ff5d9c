// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for identity resolution,
// request timeouts, and request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/olegiv/liftsync-go/internal/identity"
)

// ContextKey is the type for context keys set by this package.
type ContextKey string

// ContextKeyIdentity is the context key holding the resolved identity.
const ContextKeyIdentity ContextKey = "identity"

// Identity resolves an optional Authorization bearer token through the
// provider and stores the result in the request context. Requests without a
// token proceed anonymously; requests with a bad token are rejected.
func Identity(provider identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, "invalid Authorization header", http.StatusUnauthorized)
				return
			}

			id, err := provider.Resolve(r.Context(), parts[1])
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity resolved for the request, if
// any.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(identity.Identity)
	return id, ok
}
