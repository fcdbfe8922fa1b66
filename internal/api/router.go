// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthRateLimit allows frequent liveness probes without opening an
// amplification vector.
const healthRateLimit = 1000

// NewRouter assembles the HTTP surface: the recommendation API, feedback
// ingestion, profile/history reads, health probes, and /metrics.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(healthRateLimit, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(opts.RateLimit, time.Minute))
		r.Post("/recommendations", h.Recommendations)
		r.Post("/feedback", h.Feedback)
		r.Get("/users/{userID}/profile", h.UserProfile)
		r.Get("/users/{userID}/history", h.UserHistory)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// RouterOptions carries the router-level settings from configuration.
type RouterOptions struct {
	// CORSOrigins lists allowed origins; empty disables CORS handling.
	CORSOrigins []string

	// RateLimit is requests per minute per client IP on the API routes.
	RateLimit int
}
