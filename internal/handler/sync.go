// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/middleware"
	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/service"
)

// SyncHandler serves POST /api/v1/sync.
type SyncHandler struct {
	svc    *service.SyncService
	cache  cache.Cache
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler. The cache is invalidated per user
// after a batch lands, so the read API never serves stale workouts longer
// than one ingest.
func NewSyncHandler(svc *service.SyncService, c cache.Cache, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, cache: c, logger: logger}
}

// Sync handles POST /api/v1/sync.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req model.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := uuid.Parse(req.DeviceID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "device_id must be a valid UUID")
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	// An authenticated request may only write as itself.
	if id, ok := middleware.IdentityFromContext(r.Context()); ok && id.Authenticated {
		if req.UserID != id.UserID {
			writeJSONError(w, http.StatusForbidden, "user_id does not match authenticated user")
			return
		}
	}

	result, err := h.svc.SyncEvents(r.Context(), req.DeviceID, req.UserID, req.Events)
	if err != nil {
		h.logger.Error("sync failed", "device_id", req.DeviceID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	if result.AcceptedCount > 0 {
		if err := h.cache.Delete(r.Context(), workoutsCacheKey(req.UserID)); err != nil {
			h.logger.Warn("invalidating workouts cache", "user_id", req.UserID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, model.SyncResponse{
		AckCursor: model.AckCursor{
			DeviceID:          req.DeviceID,
			LastAckedSequence: result.LastAckedSequence,
		},
		AcceptedCount:    result.AcceptedCount,
		RejectedCount:    result.RejectedCount,
		RejectedEventIDs: result.RejectedEventIDs,
	})
}
