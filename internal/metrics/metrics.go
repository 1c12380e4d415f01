// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package metrics provides Prometheus instrumentation for Zipscore:
// repository query performance, response-cache efficiency, model inference,
// circuit breaker state, and API endpoint latency/throughput.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Repository metrics
	RepositoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_query_duration_seconds",
			Help:    "Duration of statistics repository queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RepositoryQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_query_errors_total",
			Help: "Total number of statistics repository query errors",
		},
		[]string{"operation", "error_type"}, // "not_found", "upstream", "invalid"
	)

	RepositoryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_retries_total",
			Help: "Total number of repository call retries after transient failures",
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total circuit breaker requests by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	// Response cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"namespace"},
	)

	CacheSharedFlights = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_shared_flights_total",
			Help: "Total number of callers that awaited an in-flight computation instead of recomputing",
		},
		[]string{"namespace"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_evictions_total",
			Help: "Total number of cache entries evicted (expiry and invalidation)",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_entries",
			Help: "Current number of cached entries",
		},
	)

	// Model inference metrics
	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_inference_duration_seconds",
			Help:    "Duration of classifier inference in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	InferenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_inference_errors_total",
			Help: "Total number of inference failures",
		},
		[]string{"error_type"}, // "not_loaded", "feature_mismatch", "throttled"
	)

	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_artifact_loaded",
			Help: "Whether the trained model artifact is loaded (1) or unavailable (0)",
		},
	)

	// Cache invalidation (data refresh events)
	InvalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidation_events_total",
			Help: "Total number of processed data-refresh invalidation events",
		},
		[]string{"outcome"}, // "applied", "malformed"
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordAPIRequest records an API request with duration and status code.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveRepositoryQuery records a repository query duration.
func ObserveRepositoryQuery(operation string, start time.Time) {
	RepositoryQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
