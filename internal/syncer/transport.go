// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package syncer drives the client side of the sync protocol: a
// single-flight coordinator over the durable queue and an HTTP transport
// to the server.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/olegiv/liftsync-go/internal/model"
)

// Transport failure kinds. A timeout is indistinguishable from a network
// failure for queue accounting: both return events to pending with an
// incremented retry count.
var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrTimeout            = errors.New("request timed out")
)

// Transport submits batches and merge requests to the server.
type Transport interface {
	Sync(ctx context.Context, req model.SyncRequest) (model.SyncResponse, error)
	Merge(ctx context.Context, anonymousUserID string) (model.MergeResponse, error)
}

// HTTPTransport talks to the sync server over HTTP with a bounded deadline
// per request.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the given server. token may be
// empty for anonymous devices; when set it is sent as a bearer credential.
func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Sync submits one batch to POST /api/v1/sync.
func (t *HTTPTransport) Sync(ctx context.Context, req model.SyncRequest) (model.SyncResponse, error) {
	var resp model.SyncResponse
	if err := t.post(ctx, "/api/v1/sync", req, &resp); err != nil {
		return model.SyncResponse{}, err
	}
	return resp, nil
}

// Merge asks the server to fold the anonymous identity into the
// authenticated one carried by the transport's token.
func (t *HTTPTransport) Merge(ctx context.Context, anonymousUserID string) (model.MergeResponse, error) {
	var resp model.MergeResponse
	req := model.MergeRequest{AnonymousUserID: anonymousUserID}
	if err := t.post(ctx, "/api/v1/users/merge", req, &resp); err != nil {
		return model.MergeResponse{}, err
	}
	return resp, nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, body, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: server returned %d: %s", ErrNetworkUnavailable, res.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(res.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyTransportError folds the zoo of client errors into the two kinds
// the queue accounting distinguishes.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
}
