// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/identity"
	"github.com/olegiv/liftsync-go/internal/middleware"
	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/projection"
	"github.com/olegiv/liftsync-go/internal/service"
	"github.com/olegiv/liftsync-go/internal/testutil"
)

// testRouter assembles the API routes over a temp database, mirroring the
// production wiring.
func testRouter(t *testing.T, tokens map[string]string) (http.Handler, *sql.DB) {
	t.Helper()

	db := testutil.TestServerDB(t)
	logger := testutil.TestLoggerSilent()
	readCache := cache.NewMemoryCache(cache.MemoryOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = readCache.Close() })

	rebuilder := projection.New(db, logger)
	syncSvc := service.NewSyncService(db, rebuilder, logger)
	mergeSvc := service.NewMergeService(db, logger)

	r := chi.NewRouter()
	r.Use(middleware.Identity(identity.NewStaticProvider(tokens)))
	r.Post("/api/v1/sync", NewSyncHandler(syncSvc, readCache, logger).Sync)
	r.Post("/api/v1/projections/rebuild", NewProjectionsHandler(rebuilder, readCache, logger).Rebuild)
	r.Post("/api/v1/users/merge", NewMergeHandler(mergeSvc, rebuilder, readCache, logger).Merge)
	r.Get("/api/v1/workouts", NewWorkoutsHandler(db, readCache, logger).List)
	r.Get("/api/v1/workouts/{workoutID}/sets", NewWorkoutsHandler(db, readCache, logger).Sets)

	return r, db
}

func postJSON(t *testing.T, router http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func syncBody(deviceID, userID string, seqs ...int64) model.SyncRequest {
	events := make([]model.SyncEventRequest, len(seqs))
	for i, seq := range seqs {
		events[i] = model.SyncEventRequest{
			EventID:        uuid.NewString(),
			EventType:      model.EventWorkoutCancelled,
			Payload:        json.RawMessage(`{"workout_id":"` + uuid.NewString() + `"}`),
			SequenceNumber: seq,
		}
	}
	return model.SyncRequest{DeviceID: deviceID, UserID: userID, Events: events}
}

func TestSyncEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	device := uuid.NewString()
	user := uuid.NewString()

	rec := postJSON(t, router, "/api/v1/sync", "", syncBody(device, user, 1, 2, 3))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp model.SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.AcceptedCount != 3 {
		t.Errorf("accepted_count = %d, want 3", resp.AcceptedCount)
	}
	if resp.AckCursor.DeviceID != device {
		t.Errorf("ack device = %q, want %q", resp.AckCursor.DeviceID, device)
	}
	if resp.AckCursor.LastAckedSequence == nil || *resp.AckCursor.LastAckedSequence != 3 {
		t.Errorf("last_acked_sequence = %v, want 3", resp.AckCursor.LastAckedSequence)
	}
	if len(resp.RejectedEventIDs) != 0 {
		t.Errorf("rejected_event_ids = %v, want empty", resp.RejectedEventIDs)
	}
}

func TestSyncEndpointEmptyEvents(t *testing.T) {
	router, _ := testRouter(t, nil)

	body := model.SyncRequest{DeviceID: uuid.NewString(), UserID: uuid.NewString()}
	rec := postJSON(t, router, "/api/v1/sync", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp model.SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.AcceptedCount != 0 {
		t.Errorf("accepted_count = %d, want 0", resp.AcceptedCount)
	}
	if resp.AckCursor.LastAckedSequence != nil {
		t.Errorf("last_acked_sequence = %v, want null", *resp.AckCursor.LastAckedSequence)
	}
}

func TestSyncEndpointBadRequest(t *testing.T) {
	router, _ := testRouter(t, nil)

	// malformed body
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}

	// malformed device id
	rec = postJSON(t, router, "/api/v1/sync", "", syncBody("not-a-uuid", uuid.NewString(), 1))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad device_id: status = %d, want 400", rec.Code)
	}

	// malformed user id
	rec = postJSON(t, router, "/api/v1/sync", "", syncBody(uuid.NewString(), "not-a-uuid", 1))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad user_id: status = %d, want 400", rec.Code)
	}
}

func TestSyncEndpointOwnership(t *testing.T) {
	authUser := uuid.NewString()
	router, _ := testRouter(t, map[string]string{"tok": authUser})

	// Authenticated caller writing as someone else is forbidden.
	rec := postJSON(t, router, "/api/v1/sync", "tok", syncBody(uuid.NewString(), uuid.NewString(), 1))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	// Writing as itself is fine.
	rec = postJSON(t, router, "/api/v1/sync", "tok", syncBody(uuid.NewString(), authUser, 1))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	// An unknown token is rejected outright.
	rec = postJSON(t, router, "/api/v1/sync", "bad-token", syncBody(uuid.NewString(), authUser, 1))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSyncEndpointRejectedIDs(t *testing.T) {
	router, _ := testRouter(t, nil)

	body := syncBody(uuid.NewString(), uuid.NewString(), 1, 2, 3)
	body.Events[1].EventType = "Unknown"
	badID := body.Events[1].EventID

	rec := postJSON(t, router, "/api/v1/sync", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp model.SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.AcceptedCount != 2 || resp.RejectedCount != 1 {
		t.Errorf("counts = %d/%d, want 2 accepted / 1 rejected", resp.AcceptedCount, resp.RejectedCount)
	}
	if len(resp.RejectedEventIDs) != 1 || resp.RejectedEventIDs[0] != badID {
		t.Errorf("rejected_event_ids = %v, want [%s]", resp.RejectedEventIDs, badID)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	device := uuid.NewString()
	user := uuid.NewString()
	workout := uuid.NewString()

	body := model.SyncRequest{
		DeviceID: device,
		UserID:   user,
		Events: []model.SyncEventRequest{{
			EventID:        uuid.NewString(),
			EventType:      model.EventWorkoutStarted,
			Payload:        json.RawMessage(`{"workout_id":"` + workout + `","started_at":"2026-01-05T10:00:00Z"}`),
			SequenceNumber: 1,
		}},
	}
	if rec := postJSON(t, router, "/api/v1/sync", "", body); rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", rec.Code)
	}

	rec := postJSON(t, router, "/api/v1/projections/rebuild", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp model.RebuildResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.WorkoutsWritten != 1 {
		t.Errorf("workouts_written = %d, want 1", resp.WorkoutsWritten)
	}
}

func TestMergeEndpointRequiresAuth(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := postJSON(t, router, "/api/v1/users/merge", "", model.MergeRequest{AnonymousUserID: uuid.NewString()})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMergeEndpoint(t *testing.T) {
	authUser := uuid.NewString()
	router, _ := testRouter(t, map[string]string{"tok": authUser})

	device := uuid.NewString()
	anon := uuid.NewString()
	if rec := postJSON(t, router, "/api/v1/sync", "", syncBody(device, anon, 1, 2)); rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", rec.Code)
	}

	rec := postJSON(t, router, "/api/v1/users/merge", "tok", model.MergeRequest{AnonymousUserID: anon})
	if rec.Code != http.StatusOK {
		t.Fatalf("merge status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp model.MergeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.MergedEventCount != 2 {
		t.Errorf("merged_event_count = %d, want 2", resp.MergedEventCount)
	}
}

func TestMergeEndpointConflict(t *testing.T) {
	authUser := uuid.NewString()
	router, _ := testRouter(t, map[string]string{"tok": authUser})

	device := uuid.NewString()
	anon := uuid.NewString()

	// Same device, overlapping sequences under both identities.
	if rec := postJSON(t, router, "/api/v1/sync", "", syncBody(device, anon, 1, 2)); rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d", rec.Code)
	}
	if rec := postJSON(t, router, "/api/v1/sync", "tok", syncBody(device, authUser, 1, 2)); rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d", rec.Code)
	}

	rec := postJSON(t, router, "/api/v1/users/merge", "tok", model.MergeRequest{AnonymousUserID: anon})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409; body: %s", rec.Code, rec.Body.String())
	}
}
