// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "melodex_pipeline_duration_seconds",
			Help:    "End-to-end recommendation pipeline latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_recommendation_requests_total",
			Help: "Total recommendation requests by outcome",
		},
		[]string{"status"}, // "ok", "empty", "retrieval_failed"
	)

	CandidatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_candidates_dropped_total",
			Help: "Total malformed candidates dropped during scoring",
		},
	)

	RerankDegradations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_rerank_degradations_total",
			Help: "Total rerank failures that degraded to score-order truncation",
		},
	)

	RerankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "melodex_rerank_duration_seconds",
			Help:    "External reranker call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "melodex_retrieval_duration_seconds",
			Help:    "Candidate retrieval call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SummarizerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_summarizer_fallbacks_total",
			Help: "Total profile summarization failures served by the deterministic fallback",
		},
	)

	// Feedback metrics

	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_feedback_events_total",
			Help: "Total accepted feedback events by kind",
		},
		[]string{"kind"},
	)

	ProfileRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_profile_recomputes_total",
			Help: "Total wholesale profile recomputations",
		},
	)

	// Store metrics

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_store_operations_total",
			Help: "Total profile store operations by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melodex_store_operation_duration_seconds",
			Help:    "Profile store operation latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melodex_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melodex_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Circuit breaker state: 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "melodex_circuit_breaker_state",
			Help: "Circuit breaker state by upstream (0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)
)

// RecordStoreOperation records one store call's outcome and latency.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperations.WithLabelValues(operation, status).Inc()
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}
