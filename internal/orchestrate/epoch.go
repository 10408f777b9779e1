// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davech88/reclens/internal/metrics"
)

// Epoch tags a request batch with the filter state that produced it.
// Results carrying a superseded epoch are discarded, never applied.
type Epoch struct {
	// ID uniquely identifies the epoch.
	ID string `json:"id"`

	// Filters is the filter snapshot the epoch was begun for.
	Filters FilterSnapshot `json:"filters"`

	// BegunAt is when the epoch started.
	BegunAt time.Time `json:"begun_at"`
}

// EpochTracker hands out epochs and answers staleness checks. One tracker
// exists per dashboard session scope; it is safe for concurrent use.
//
// This is cooperative cancellation: a superseded fetch may still complete,
// but its result is dropped on arrival. Discarding stale results is a
// correctness property — a slow request from an old filter must never
// overwrite a newer filter's results.
type EpochTracker struct {
	mu      sync.RWMutex
	current Epoch
}

// NewEpochTracker creates a tracker with an initial epoch for the given
// filter state.
func NewEpochTracker(filters FilterSnapshot) *EpochTracker {
	t := &EpochTracker{}
	t.Begin(filters)
	return t
}

// Begin starts a new epoch for the given filter state and returns it.
// All previously issued epochs become stale immediately.
func (t *EpochTracker) Begin(filters FilterSnapshot) Epoch {
	e := Epoch{
		ID:      uuid.New().String(),
		Filters: filters,
		BegunAt: time.Now(),
	}

	t.mu.Lock()
	t.current = e
	t.mu.Unlock()

	metrics.EpochsBegun.Inc()
	return e
}

// Current returns the active epoch.
func (t *EpochTracker) Current() Epoch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Stale reports whether e has been superseded by a newer epoch.
func (t *EpochTracker) Stale(e Epoch) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return e.ID != t.current.ID
}

// Admit reports whether a result produced under e may be applied. A stale
// result is counted and dropped; this is not an error condition.
func (t *EpochTracker) Admit(e Epoch) bool {
	if t.Stale(e) {
		metrics.StaleResultsDiscarded.Inc()
		return false
	}
	return true
}
