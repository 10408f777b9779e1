// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"time"
)

// Source identifies which endpoint family produced a result.
type Source string

const (
	// SourceML is the machine-learning-backed endpoint family.
	SourceML Source = "ml"

	// SourceSQL is the deterministic SQL/heuristic endpoint family.
	SourceSQL Source = "sql"
)

// Algorithm is the experiment arm a caller is assigned to.
type Algorithm string

const (
	// AlgorithmML routes the caller to the ML-backed path.
	AlgorithmML Algorithm = "ml"

	// AlgorithmControl routes the caller to the deterministic path.
	AlgorithmControl Algorithm = "control"
)

// Variant is the experiment bucket assigned to a caller. Once assigned it
// is stable for the session; a rollout percentage change never flips an
// existing assignment.
type Variant struct {
	// ID uniquely identifies the assignment (callerID-derived).
	ID string `json:"id"`

	// Algorithm is the assigned experiment arm.
	Algorithm Algorithm `json:"algorithm"`

	// RolloutPercent is the rollout percentage in effect at assignment time.
	RolloutPercent int `json:"rollout_percent"`

	// AssignedAt is when the assignment was first made.
	AssignedAt time.Time `json:"assigned_at"`
}

// EngineStatus is a snapshot of the ML backend's readiness.
type EngineStatus struct {
	// IsTrained reports whether the backend has trained models available.
	IsTrained bool `json:"is_trained"`

	// TrainedAt is when the backend last completed training. Zero when the
	// backend has never trained.
	TrainedAt time.Time `json:"trained_at"`

	// Algorithms lists the model families the backend reports as available.
	Algorithms []string `json:"algorithms"`

	// FetchedAt is when this snapshot was obtained from the backend.
	FetchedAt time.Time `json:"fetched_at"`

	// Stale marks a snapshot served past the poll interval because newer
	// polls failed. Routing treats a stale-degraded engine as not trained.
	Stale bool `json:"stale"`
}

// Usable reports whether the ML path may be routed to: the engine must be
// trained and the snapshot must not be stale-degraded.
func (s EngineStatus) Usable() bool {
	return s.IsTrained && !s.Stale
}

// RecommendationItem is a single per-entity recommendation as returned by
// either endpoint family. Immutable once returned.
type RecommendationItem struct {
	// EntityID is the entity (customer) the recommendation was fetched for.
	EntityID string `json:"entity_id"`

	// ProductID identifies the recommended product.
	ProductID string `json:"product_id"`

	// ProductName is the display name, when the backend provides one.
	ProductName string `json:"product_name,omitempty"`

	// Score is the recommendation strength in [0, 1].
	Score float64 `json:"score"`

	// Source is the endpoint family that actually produced this item,
	// which may differ from the routed family after a fallback.
	Source Source `json:"source"`
}

// AggregatedRecommendation is a group-level aggregate over per-entity
// recommendation lists. Derived, never persisted.
type AggregatedRecommendation struct {
	// ProductID identifies the product.
	ProductID string `json:"product_id"`

	// ProductName is the display name, when known.
	ProductName string `json:"product_name,omitempty"`

	// AvgScore is the mean score over the entities that returned this
	// product. Entities that did not return it contribute nothing.
	AvgScore float64 `json:"avg_score"`

	// SupportCount is the number of distinct entities whose recommendation
	// list included this product. Never exceeds the fan-out sample size.
	SupportCount int `json:"support_count"`

	// ContributingEntityIDs lists the entities behind SupportCount,
	// sorted for deterministic output.
	ContributingEntityIDs []string `json:"contributing_entity_ids"`
}

// Entity is a fan-out unit: a customer within a region or RFM segment.
type Entity struct {
	// ID is the customer identifier used for per-entity fetches.
	ID string `json:"id"`

	// Value orders entities for deterministic sampling; higher-value
	// entities are sampled first (e.g. lifetime spend).
	Value float64 `json:"value"`
}

// FilterSnapshot captures the dashboard filter state that produced a
// request batch. Any change to it begins a new epoch.
type FilterSnapshot struct {
	// TimeFilter is the analytics window, e.g. "30d".
	TimeFilter string `json:"time_filter"`

	// Category restricts recommendations to a product category.
	Category string `json:"category,omitempty"`

	// Scope is the entity grouping: "city", "province", or "segment".
	Scope string `json:"scope,omitempty"`

	// ScopeName is the selected city, province, or RFM segment name.
	ScopeName string `json:"scope_name,omitempty"`
}

// Request is a logical recommendation request handed to the router.
type Request struct {
	// Operation names the upstream operation, e.g. "collaborative-products".
	Operation string `json:"operation"`

	// CallerID identifies the dashboard session for variant assignment.
	CallerID string `json:"caller_id,omitempty"`

	// EntityID is set on per-entity (fan-out unit) fetches.
	EntityID string `json:"entity_id,omitempty"`

	// Filters is the filter state behind this request.
	Filters FilterSnapshot `json:"filters"`

	// Limit bounds the upstream result list. Zero means upstream default.
	Limit int `json:"limit,omitempty"`
}
