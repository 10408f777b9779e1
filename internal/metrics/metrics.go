// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package metrics exposes Prometheus collectors for the orchestration layer:
// routing decisions, upstream fallbacks, fan-out behavior, engine status
// polling, and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Routing Metrics
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_routing_decisions_total",
			Help: "Total routing decisions by endpoint family and reason",
		},
		[]string{"family", "reason"},
	)

	RoutingFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reclens_routing_fallbacks_total",
			Help: "Total silent ML-to-SQL fallbacks after an ML fetch failure",
		},
	)

	RoutingTotalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reclens_routing_total_failures_total",
			Help: "Total logical requests that failed on both ML and SQL",
		},
	)

	// Fan-out Metrics
	FanoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reclens_fanout_duration_seconds",
			Help:    "Duration of fan-out aggregation batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	FanoutEntityFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_fanout_entity_fetches_total",
			Help: "Per-entity fetch outcomes within fan-out batches",
		},
		[]string{"outcome"}, // "success", "failure", "timeout"
	)

	FanoutPartialBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reclens_fanout_partial_batches_total",
			Help: "Fan-out batches that completed with partial data",
		},
	)

	// Epoch Metrics
	EpochsBegun = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reclens_epochs_begun_total",
			Help: "Total request epochs started by filter changes",
		},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reclens_stale_results_discarded_total",
			Help: "Results discarded because their epoch was superseded",
		},
	)

	// Engine Status Metrics
	EngineTrained = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reclens_engine_trained",
			Help: "Whether the ML engine reports a trained model (1) or not (0)",
		},
	)

	EngineStatusStalenessSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reclens_engine_status_staleness_seconds",
			Help: "Age of the cached engine status in seconds",
		},
	)

	EngineStatusPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_engine_status_polls_total",
			Help: "Engine status poll attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Upstream Client Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reclens_upstream_request_duration_seconds",
			Help:    "Duration of upstream backend requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"family", "operation"},
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_upstream_request_errors_total",
			Help: "Total upstream backend request errors",
		},
		[]string{"family", "operation", "error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reclens_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"breaker", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// API Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reclens_http_request_duration_seconds",
			Help:    "Duration of dashboard API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reclens_websocket_connections",
			Help: "Currently connected status stream clients",
		},
	)

	// Variant Metrics
	VariantAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclens_variant_assignments_total",
			Help: "New experiment variant assignments by algorithm",
		},
		[]string{"algorithm"}, // "ml", "control"
	)
)
