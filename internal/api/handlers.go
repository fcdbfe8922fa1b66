// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/melodex/internal/logging"
	"github.com/tomtom215/melodex/internal/recommend"
)

// validate is the shared validator instance.
var validate = validator.New()

// defaultHistoryLimit bounds the history endpoint when no limit is given.
const defaultHistoryLimit = 20

// Handlers holds the HTTP handlers over the recommendation service.
type Handlers struct {
	svc    *recommend.Service
	ready  func() bool
	logger zerolog.Logger
}

// NewHandlers builds the handler set. ready reports whether dependencies are
// usable; nil means always ready.
func NewHandlers(svc *recommend.Service, ready func() bool, logger zerolog.Logger) *Handlers {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handlers{
		svc:    svc,
		ready:  ready,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// recommendRequest is the POST /recommendations body. The enable flags use
// pointers so "absent" defaults to true rather than false.
type recommendRequest struct {
	UserID             string `json:"user_id" validate:"required"`
	Query              string `json:"query" validate:"required"`
	SessionID          string `json:"session_id,omitempty"`
	GenreFilter        string `json:"genre_filter,omitempty"`
	Limit              int    `json:"limit,omitempty" validate:"gte=0,lte=50"`
	EnableTimeMatching *bool  `json:"enable_time_matching,omitempty"`
	EnableReranking    *bool  `json:"enable_reranking,omitempty"`
}

// feedbackRequest is the POST /feedback body.
type feedbackRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	TrackID   string `json:"track_id" validate:"required"`
	Kind      string `json:"kind" validate:"required,oneof=like dislike play save skip rate view"`
	Rating    int    `json:"rating,omitempty" validate:"gte=0,lte=5"`
	SessionID string `json:"session_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

// Recommendations serves POST /api/v1/recommendations.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	resp, err := h.svc.Recommend(r.Context(), recommend.Request{
		UserID:             req.UserID,
		Query:              req.Query,
		SessionID:          req.SessionID,
		GenreFilter:        req.GenreFilter,
		Limit:              req.Limit,
		EnableTimeMatching: boolOrTrue(req.EnableTimeMatching),
		EnableReranking:    boolOrTrue(req.EnableReranking),
		RequestID:          logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Feedback serves POST /api/v1/feedback. Accepted events return 202; the
// consumer applies them asynchronously.
func (h *Handlers) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	err := h.svc.RecordFeedback(r.Context(), recommend.Interaction{
		ID:        req.EventID,
		UserID:    req.UserID,
		TrackID:   req.TrackID,
		Kind:      recommend.InteractionKind(req.Kind),
		Rating:    req.Rating,
		SessionID: req.SessionID,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// UserProfile serves GET /api/v1/users/{userID}/profile.
func (h *Handlers) UserProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, summary, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"profile": profile,
		"summary": summary,
	})
}

// UserHistory serves GET /api/v1/users/{userID}/history.
func (h *Handlers) UserHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, ok := parsePositiveInt(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := h.svc.History(r.Context(), userID, limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []recommend.HistoryRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"history": history,
	})
}

// HealthLive serves GET /api/v1/health/live.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// HealthReady serves GET /api/v1/health/ready.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not ready",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}

// respondServiceError maps service errors onto HTTP statuses: validation
// sentinels become 400s, everything else a 500.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrMissingUserID),
		errors.Is(err, recommend.ErrMissingQuery),
		errors.Is(err, recommend.ErrMissingTrackID),
		errors.Is(err, recommend.ErrInvalidKind),
		errors.Is(err, recommend.ErrInvalidRating),
		errors.Is(err, recommend.ErrRatingRequired):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"status": "error",
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func boolOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func parsePositiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		return 0, false
	}
	return n, true
}
