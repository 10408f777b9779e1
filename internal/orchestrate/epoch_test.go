// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"sync"
	"testing"
)

func TestEpochTrackerInitialEpoch(t *testing.T) {
	filters := FilterSnapshot{TimeFilter: "30d", Scope: "city", ScopeName: "Utrecht"}
	tracker := NewEpochTracker(filters)

	current := tracker.Current()
	if current.ID == "" {
		t.Fatal("initial epoch has no ID")
	}
	if current.Filters != filters {
		t.Errorf("Filters = %+v, want %+v", current.Filters, filters)
	}
	if tracker.Stale(current) {
		t.Error("freshly issued epoch reported stale")
	}
}

func TestEpochTrackerBeginSupersedes(t *testing.T) {
	tracker := NewEpochTracker(FilterSnapshot{TimeFilter: "30d"})

	old := tracker.Current()
	fresh := tracker.Begin(FilterSnapshot{TimeFilter: "7d"})

	if old.ID == fresh.ID {
		t.Fatal("Begin reused the previous epoch ID")
	}
	if !tracker.Stale(old) {
		t.Error("superseded epoch not reported stale")
	}
	if tracker.Stale(fresh) {
		t.Error("current epoch reported stale")
	}
}

func TestEpochTrackerAdmit(t *testing.T) {
	tracker := NewEpochTracker(FilterSnapshot{TimeFilter: "30d"})

	old := tracker.Current()
	if !tracker.Admit(old) {
		t.Fatal("current epoch was not admitted")
	}

	// A filter change in flight: the slow result from the old epoch must be
	// dropped, not applied.
	fresh := tracker.Begin(FilterSnapshot{TimeFilter: "90d"})
	if tracker.Admit(old) {
		t.Error("stale result was admitted")
	}
	if !tracker.Admit(fresh) {
		t.Error("fresh result was rejected")
	}
}

func TestEpochTrackerConcurrentBegin(t *testing.T) {
	tracker := NewEpochTracker(FilterSnapshot{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := tracker.Begin(FilterSnapshot{TimeFilter: "30d"})
			// The epoch we just began is either current or already
			// superseded by a sibling; both are consistent states.
			_ = tracker.Stale(e)
		}()
	}
	wg.Wait()

	if tracker.Stale(tracker.Current()) {
		t.Error("tracker ended in an inconsistent state")
	}
}
