// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/middleware"
	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/projection"
	"github.com/olegiv/liftsync-go/internal/service"
)

// MergeHandler serves POST /api/v1/users/merge.
type MergeHandler struct {
	svc       *service.MergeService
	rebuilder *projection.Rebuilder
	cache     cache.Cache
	logger    *slog.Logger
}

// NewMergeHandler creates a MergeHandler.
func NewMergeHandler(svc *service.MergeService, r *projection.Rebuilder, c cache.Cache, logger *slog.Logger) *MergeHandler {
	return &MergeHandler{svc: svc, rebuilder: r, cache: c, logger: logger}
}

// Merge handles POST /api/v1/users/merge. The caller must be
// authenticated; the merge target is the caller's own identity. After the
// log is rewritten, projections for the target are rebuilt so reads
// reflect the merged history immediately.
func (h *MergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || !id.Authenticated {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req model.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := uuid.Parse(req.AnonymousUserID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "anonymous_user_id must be a valid UUID")
		return
	}

	merged, err := h.svc.Merge(r.Context(), req.AnonymousUserID, id.UserID)
	if err != nil {
		if errors.Is(err, service.ErrMergeConflict) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("merge failed", "anonymous_user_id", req.AnonymousUserID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "merge failed")
		return
	}

	if merged > 0 {
		if _, err := h.rebuilder.Rebuild(r.Context(), id.UserID); err != nil {
			h.logger.Error("rebuilding projections after merge", "user_id", id.UserID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "merge committed but projection rebuild failed")
			return
		}
		for _, key := range []string{workoutsCacheKey(id.UserID), workoutsCacheKey(req.AnonymousUserID)} {
			if err := h.cache.Delete(r.Context(), key); err != nil {
				h.logger.Warn("invalidating workouts cache", "key", key, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, model.MergeResponse{MergedEventCount: merged})
}
