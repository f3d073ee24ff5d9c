// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package identity is the boundary to the external identity provider.
// Credential verification and token issuance live outside this system; all
// the sync core needs is the user id a request acts as.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens the provider does not recognize.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the resolved actor of a request.
type Identity struct {
	UserID        string
	Authenticated bool
}

// Provider resolves a bearer token to an authenticated identity.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// anonymousNamespace scopes device-derived anonymous user ids.
var anonymousNamespace = uuid.MustParse("1f2d7a52-9c1e-4a7b-8f63-52a3f0f0b9d4")

// AnonymousUserID derives the stable anonymous user id for a device. The
// same device always maps to the same id, so an unauthenticated client owns
// a consistent identity until it merges into a real account.
func AnonymousUserID(deviceID string) string {
	return uuid.NewSHA1(anonymousNamespace, []byte(deviceID)).String()
}

// StaticProvider resolves tokens from a fixed map. It backs development
// setups and tests; production deployments plug in a real provider.
type StaticProvider struct {
	tokens map[string]string // token -> user id
}

// NewStaticProvider creates a provider over a token -> user id map.
func NewStaticProvider(tokens map[string]string) *StaticProvider {
	return &StaticProvider{tokens: tokens}
}

// Resolve implements Provider.
func (p *StaticProvider) Resolve(_ context.Context, token string) (Identity, error) {
	userID, ok := p.tokens[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Authenticated: true}, nil
}
