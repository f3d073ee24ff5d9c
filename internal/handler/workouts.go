// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/olegiv/liftsync-go/internal/cache"
	"github.com/olegiv/liftsync-go/internal/middleware"
	"github.com/olegiv/liftsync-go/internal/model"
	"github.com/olegiv/liftsync-go/internal/store"
)

// WorkoutsHandler serves the projection read API.
type WorkoutsHandler struct {
	queries *store.Queries
	cache   cache.Cache
	logger  *slog.Logger
}

// NewWorkoutsHandler creates a WorkoutsHandler.
func NewWorkoutsHandler(db *sql.DB, c cache.Cache, logger *slog.Logger) *WorkoutsHandler {
	return &WorkoutsHandler{queries: store.New(db), cache: c, logger: logger}
}

// WorkoutListResponse is the body of GET /api/v1/workouts.
type WorkoutListResponse struct {
	Workouts []model.WorkoutProjection `json:"workouts"`
}

// SetListResponse is the body of GET /api/v1/workouts/{workoutID}/sets.
type SetListResponse struct {
	Sets []model.SetProjection `json:"sets"`
}

func workoutsCacheKey(userID string) string {
	return "workouts:" + userID
}

// List handles GET /api/v1/workouts. Authentication is required: the
// projection read model is scoped to the caller's identity.
func (h *WorkoutsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || !id.Authenticated {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	key := workoutsCacheKey(id.UserID)
	if cached, err := h.cache.Get(r.Context(), key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	workouts, err := h.queries.ListWorkoutsByUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("listing workouts", "user_id", id.UserID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "listing workouts failed")
		return
	}
	if workouts == nil {
		workouts = []model.WorkoutProjection{}
	}

	body, err := json.Marshal(WorkoutListResponse{Workouts: workouts})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "encoding response failed")
		return
	}
	if err := h.cache.Set(r.Context(), key, body, 0); err != nil {
		h.logger.Warn("caching workouts", "user_id", id.UserID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Sets handles GET /api/v1/workouts/{workoutID}/sets.
func (h *WorkoutsHandler) Sets(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || !id.Authenticated {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	workoutID := chi.URLParam(r, "workoutID")
	if _, err := uuid.Parse(workoutID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "workout id must be a valid UUID")
		return
	}

	workout, err := h.queries.GetWorkoutProjection(r.Context(), workoutID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, http.StatusNotFound, "workout not found")
		return
	}
	if err != nil {
		h.logger.Error("loading workout", "workout_id", workoutID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "loading workout failed")
		return
	}
	if workout.UserID != id.UserID {
		writeJSONError(w, http.StatusNotFound, "workout not found")
		return
	}

	sets, err := h.queries.ListSetsByWorkout(r.Context(), workoutID)
	if err != nil {
		h.logger.Error("listing sets", "workout_id", workoutID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "listing sets failed")
		return
	}
	if sets == nil {
		sets = []model.SetProjection{}
	}

	writeJSON(w, http.StatusOK, SetListResponse{Sets: sets})
}
