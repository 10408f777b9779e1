// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/metrics"
)

// Routing decision reasons.
const (
	ReasonControlVariant   = "control_variant"
	ReasonEngineNotTrained = "engine_not_trained"
	ReasonStatusStale      = "status_stale"
	ReasonMLSelected       = "ml_selected"
	ReasonMLFetchFailed    = "ml_fetch_failed"
)

// Decision is the outcome of routing a logical request.
type Decision struct {
	// Family is the endpoint family to call.
	Family Source `json:"family"`

	// Reason explains the decision for diagnostics and the UI source tag.
	Reason string `json:"reason"`

	// Fallback marks a decision that lands on SQL only because the ML
	// engine is unavailable or untrained, not because of the variant.
	Fallback bool `json:"fallback"`
}

// Fetcher executes a logical request against one endpoint family.
// Implemented by the backend client package.
type Fetcher interface {
	// FetchML calls the ML endpoint family.
	FetchML(ctx context.Context, req Request) ([]RecommendationItem, error)

	// FetchSQL calls the SQL/heuristic endpoint family.
	FetchSQL(ctx context.Context, req Request) ([]RecommendationItem, error)
}

// Router decides which endpoint family serves a logical request and
// executes the fetch with at most one silent ML-to-SQL fallback.
// It is safe for concurrent use.
type Router struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewRouter creates a source router over the given fetcher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(fetcher Fetcher, logger zerolog.Logger) *Router {
	return &Router{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// Route decides the endpoint family for a request. The engine status must
// be snapshotted once by the caller and passed in; re-reading it mid-
// decision could mix two different states into one decision.
func Route(v Variant, status EngineStatus) Decision {
	switch {
	case v.Algorithm == AlgorithmControl:
		return Decision{Family: SourceSQL, Reason: ReasonControlVariant}
	case !status.IsTrained:
		return Decision{Family: SourceSQL, Reason: ReasonEngineNotTrained, Fallback: true}
	case status.Stale:
		return Decision{Family: SourceSQL, Reason: ReasonStatusStale, Fallback: true}
	default:
		return Decision{Family: SourceML, Reason: ReasonMLSelected}
	}
}

// Fetch routes and executes a logical request. The returned items are
// tagged with the source that actually produced them, which differs from
// the routed family when the ML attempt failed and the SQL fallback
// served the request.
//
// Failure surfaces only as *TotalFailureError: the routed family failed
// and, on the ML path, so did the single SQL fallback. There is no retry
// loop in either direction.
func (r *Router) Fetch(ctx context.Context, req Request, v Variant, status EngineStatus) ([]RecommendationItem, Decision, error) {
	decision := Route(v, status)
	metrics.RecordRoutingDecision(string(decision.Family), decision.Reason)

	logger := r.logger.With().
		Str("operation", req.Operation).
		Str("family", string(decision.Family)).
		Str("reason", decision.Reason).
		Logger()

	if decision.Family == SourceSQL {
		items, err := r.fetcher.FetchSQL(ctx, req)
		if err != nil {
			metrics.RoutingTotalFailures.Inc()
			return nil, decision, &TotalFailureError{SQLErr: err}
		}
		return tagItems(items, SourceSQL), decision, nil
	}

	items, mlErr := r.fetcher.FetchML(ctx, req)
	if mlErr == nil {
		return tagItems(items, SourceML), decision, nil
	}

	// Single silent fallback to SQL. The decision keeps its ML family so
	// callers can see what was intended; the item tags carry the truth.
	logger.Warn().Err(mlErr).Msg("ml fetch failed, falling back to sql")
	metrics.RoutingFallbacks.Inc()

	items, sqlErr := r.fetcher.FetchSQL(ctx, req)
	if sqlErr != nil {
		metrics.RoutingTotalFailures.Inc()
		return nil, decision, &TotalFailureError{MLErr: mlErr, SQLErr: sqlErr}
	}

	decision.Fallback = true
	decision.Reason = ReasonMLFetchFailed
	return tagItems(items, SourceSQL), decision, nil
}

// tagItems stamps every item with the source that produced it.
func tagItems(items []RecommendationItem, src Source) []RecommendationItem {
	for i := range items {
		items[i].Source = src
	}
	return items
}
