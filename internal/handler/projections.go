// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/projection"
)

// ProjectionsHandler serves POST /api/v1/projections/rebuild.
type ProjectionsHandler struct {
	rebuilder *projection.Rebuilder
	cache     cache.Cache
	logger    *slog.Logger
}

// NewProjectionsHandler creates a ProjectionsHandler.
func NewProjectionsHandler(r *projection.Rebuilder, c cache.Cache, logger *slog.Logger) *ProjectionsHandler {
	return &ProjectionsHandler{rebuilder: r, cache: c, logger: logger}
}

// Rebuild handles POST /api/v1/projections/rebuild. The whole read-model
// cache is dropped afterwards: every cached answer may have changed.
func (h *ProjectionsHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	result, err := h.rebuilder.Rebuild(r.Context(), "")
	if err != nil {
		h.logger.Error("projection rebuild failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "projection rebuild failed")
		return
	}

	if err := h.cache.Clear(r.Context()); err != nil {
		h.logger.Warn("clearing read cache after rebuild", "error", err)
	}

	writeJSON(w, http.StatusOK, model.RebuildResponse{
		WorkoutsWritten: result.WorkoutsWritten,
		SetsWritten:     result.SetsWritten,
		DurationMs:      result.Duration.Milliseconds(),
	})
}
