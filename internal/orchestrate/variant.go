// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/metrics"
)

// VariantStore persists variant assignments so experiment buckets survive
// process restarts. Implemented by the variantstore package on BadgerDB.
type VariantStore interface {
	// Get returns the stored assignment for a caller, if any.
	Get(callerID string) (Variant, bool, error)

	// Put stores an assignment.
	Put(callerID string, v Variant) error

	// Delete removes an assignment.
	Delete(callerID string) error
}

// Assigner deterministically buckets callers into experiment variants.
// It is safe for concurrent use.
//
// Bucketing derives a stable value in [0,100) from an FNV-1a hash of the
// caller ID, so the same caller lands in the same bucket across calls,
// reloads, and processes. A caller assigned under one rollout percentage
// keeps that assignment even if the percentage later changes; flipping
// mid-session would contaminate the experiment.
type Assigner struct {
	mu     sync.RWMutex
	cache  map[string]Variant
	store  VariantStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewAssigner creates a variant assigner. store may be nil for in-memory
// only assignment.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAssigner(store VariantStore, logger zerolog.Logger) *Assigner {
	return &Assigner{
		cache:  make(map[string]Variant),
		store:  store,
		logger: logger.With().Str("component", "variant").Logger(),
		now:    time.Now,
	}
}

// defaultControlVariant is returned when no caller identifier is available.
// It is never cached; anonymous callers always take the deterministic path.
func defaultControlVariant() Variant {
	return Variant{
		ID:        "anonymous",
		Algorithm: AlgorithmControl,
	}
}

// Assign returns the variant for callerID under rolloutPercent.
//
// Repeated calls with the same callerID return the identical variant
// regardless of rollout changes in between; only Reset discards an
// assignment. An empty callerID yields the fixed control default.
func (a *Assigner) Assign(callerID string, rolloutPercent int) Variant {
	if callerID == "" {
		return defaultControlVariant()
	}

	a.mu.RLock()
	v, ok := a.cache[callerID]
	a.mu.RUnlock()
	if ok {
		return v
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-check under the write lock; another goroutine may have assigned.
	if v, ok := a.cache[callerID]; ok {
		return v
	}

	// Stored assignments take precedence over fresh bucketing so restarts
	// keep callers in their original buckets.
	if a.store != nil {
		if stored, found, err := a.store.Get(callerID); err != nil {
			a.logger.Warn().Err(err).Str("caller_id", callerID).Msg("variant store read failed")
		} else if found {
			a.cache[callerID] = stored
			return stored
		}
	}

	v = a.bucket(callerID, rolloutPercent)
	a.cache[callerID] = v

	if a.store != nil {
		if err := a.store.Put(callerID, v); err != nil {
			a.logger.Warn().Err(err).Str("caller_id", callerID).Msg("variant store write failed")
		}
	}

	metrics.VariantAssignments.WithLabelValues(string(v.Algorithm)).Inc()
	a.logger.Debug().
		Str("caller_id", callerID).
		Str("algorithm", string(v.Algorithm)).
		Int("rollout_percent", rolloutPercent).
		Msg("variant assigned")

	return v
}

// Reset discards the assignment for callerID. The next Assign call
// re-buckets under the rollout percentage in effect at that time.
func (a *Assigner) Reset(callerID string) {
	if callerID == "" {
		return
	}

	a.mu.Lock()
	delete(a.cache, callerID)
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Delete(callerID); err != nil {
			a.logger.Warn().Err(err).Str("caller_id", callerID).Msg("variant store delete failed")
		}
	}
}

// bucket derives the deterministic assignment for a caller.
func (a *Assigner) bucket(callerID string, rolloutPercent int) Variant {
	alg := AlgorithmControl
	if BucketValue(callerID) < float64(rolloutPercent) {
		alg = AlgorithmML
	}

	return Variant{
		ID:             "v-" + callerID,
		Algorithm:      alg,
		RolloutPercent: rolloutPercent,
		AssignedAt:     a.now(),
	}
}

// BucketValue maps a caller ID onto [0,100) with 0.01 resolution using an
// FNV-1a hash. Exported for rollout distribution analysis.
func BucketValue(callerID string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(callerID))
	return float64(h.Sum64()%10000) / 100.0
}
