// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

// Package metrics holds the Prometheus collectors for Tideline.
//
// Collectors are registered on the default registry via promauto and exposed
// by the HTTP surface at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"kind"}, // "liveview", "image"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"kind"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tideline_cache_invalidations_total",
			Help: "Total number of live view invalidations caused by writes",
		},
	)

	// Aggregation Pipeline Metrics
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tideline_pipeline_duration_seconds",
			Help:    "Time to build one live view",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	PipelineBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_pipeline_builds_total",
			Help: "Total number of live view builds by result",
		},
		[]string{"result"}, // "ok", "not_found", "error"
	)

	DegradedSubFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_aggregate_degraded_total",
			Help: "Sub-fetches that failed during aggregation and were defaulted to zero",
		},
		[]string{"stage"}, // "latest_sample", "window", "alerts", "image"
	)

	// Presence Metrics
	PresenceHeartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tideline_presence_heartbeats_total",
			Help: "Total number of heartbeats recorded",
		},
	)

	PresenceTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tideline_presence_tracked_identities",
			Help: "Identities currently held in the presence registry",
		},
	)

	PresenceOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tideline_presence_online_identities",
			Help: "Identities online at the last sweep",
		},
	)

	PresenceEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tideline_presence_evictions_total",
			Help: "Total number of presence records evicted after the idle threshold",
		},
	)

	PresenceMirrorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_presence_mirror_writes_total",
			Help: "Presence mirror writes by result",
		},
		[]string{"result"}, // "ok", "error", "rejected"
	)

	// Registrar Metrics
	RegistrarOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_registrar_operations_total",
			Help: "Dual-collection account operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: "full_success", "partial_failure", "error"
	)

	// Fan-out Metrics
	FanoutRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tideline_fanout_recomputes_total",
			Help: "Full snapshot recomputations triggered by change batches",
		},
	)

	FanoutSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tideline_fanout_active_subscriptions",
			Help: "Active collection fan-out subscriptions",
		},
	)

	// Bulk Metrics
	BulkItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_bulk_items_total",
			Help: "Bulk update items by result",
		},
		[]string{"result"}, // "updated", "error"
	)

	// Replication Metrics
	ReplicationPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tideline_replication_published_total",
			Help: "Change batches published to other instances",
		},
	)

	ReplicationApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tideline_replication_applied_total",
			Help: "Remote change batches applied locally",
		},
	)

	ReplicationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_replication_errors_total",
			Help: "Replication failures by stage",
		},
		[]string{"stage"}, // "encode", "publish", "decode", "apply"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tideline_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tideline_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tideline_websocket_connections",
			Help: "Current number of WebSocket clients",
		},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tideline_websocket_messages_sent_total",
			Help: "WebSocket messages broadcast by type",
		},
		[]string{"type"},
	)
)

// RecordCacheLookup records a cache hit or miss for a key kind.
func RecordCacheLookup(kind string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(kind).Inc()
		return
	}
	CacheMisses.WithLabelValues(kind).Inc()
}

// RecordPipelineBuild records one live view build.
func RecordPipelineBuild(duration time.Duration, result string) {
	PipelineDuration.Observe(duration.Seconds())
	PipelineBuilds.WithLabelValues(result).Inc()
}

// RecordDegraded counts a sub-fetch that fell back to zero data.
func RecordDegraded(stage string) {
	DegradedSubFetches.WithLabelValues(stage).Inc()
}

// RecordMirrorWrite records the result of a presence mirror write.
func RecordMirrorWrite(result string) {
	PresenceMirrorWrites.WithLabelValues(result).Inc()
}

// RecordRegistrarOperation records the outcome of a dual-collection operation.
func RecordRegistrarOperation(operation, outcome string) {
	RegistrarOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordBulkResult records a bulk update's per-item results.
func RecordBulkResult(updated, failed int) {
	BulkItems.WithLabelValues("updated").Add(float64(updated))
	BulkItems.WithLabelValues("error").Add(float64(failed))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
