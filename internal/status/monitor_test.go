// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/config"
	"github.com/davech88/reclens/internal/orchestrate"
)

// fakeClient scripts a sequence of status responses.
type fakeClient struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	status orchestrate.EngineStatus
	err    error
}

func (f *fakeClient) EngineStatus(_ context.Context) (orchestrate.EngineStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	return r.status, r.err
}

func testStatusConfig() config.StatusConfig {
	return config.StatusConfig{
		PollInterval: 30 * time.Second,
		StaleAfter:   90 * time.Second,
	}
}

func trained(at time.Time) orchestrate.EngineStatus {
	return orchestrate.EngineStatus{IsTrained: true, TrainedAt: at, FetchedAt: at}
}

func TestStatusBeforeFirstPoll(t *testing.T) {
	m := NewMonitor(&fakeClient{responses: []fakeResponse{{}}}, testStatusConfig(), zerolog.Nop())

	s := m.Status()
	if s.IsTrained {
		t.Error("unknown engine must report untrained")
	}
	if !s.Stale {
		t.Error("unknown engine must report stale")
	}
	if s.Usable() {
		t.Error("unknown engine must not be usable for routing")
	}
}

func TestRefreshCachesStatus(t *testing.T) {
	now := time.Now()
	client := &fakeClient{responses: []fakeResponse{{status: trained(now)}}}
	m := NewMonitor(client, testStatusConfig(), zerolog.Nop())

	fresh, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !fresh.IsTrained {
		t.Error("refresh lost trained flag")
	}

	cached := m.Status()
	if !cached.IsTrained || cached.Stale {
		t.Errorf("cached status = %+v, want fresh trained", cached)
	}
}

func TestRefreshFailureKeepsLastKnownGood(t *testing.T) {
	now := time.Now()
	client := &fakeClient{responses: []fakeResponse{
		{status: trained(now)},
		{err: errors.New("backend down")},
	}}
	m := NewMonitor(client, testStatusConfig(), zerolog.Nop())

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Refresh(context.Background()); err == nil {
		t.Fatal("second refresh should have failed")
	}

	// The last-known-good snapshot survives the failed poll.
	s := m.Status()
	if !s.IsTrained {
		t.Error("failed poll wiped the cached status")
	}
	if s.Stale {
		t.Error("fresh cache should not be stale yet")
	}
}

func TestStatusStaleDegradation(t *testing.T) {
	fetchedAt := time.Now()
	client := &fakeClient{responses: []fakeResponse{{status: trained(fetchedAt)}}}
	m := NewMonitor(client, testStatusConfig(), zerolog.Nop())

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Move the clock past the staleness threshold.
	m.now = func() time.Time { return fetchedAt.Add(2 * time.Minute) }

	s := m.Status()
	if !s.Stale {
		t.Error("status past the threshold must be marked stale")
	}
	if s.Usable() {
		t.Error("stale-degraded engine must not be usable for routing")
	}
	// The trained flag itself is preserved; only staleness degrades it.
	if !s.IsTrained {
		t.Error("staleness must not rewrite the trained flag")
	}
}

func TestDefaultStaleThresholdIsThreePolls(t *testing.T) {
	cfg := config.StatusConfig{PollInterval: 30 * time.Second}
	if got := cfg.StaleThreshold(); got != 90*time.Second {
		t.Errorf("StaleThreshold = %v, want 90s", got)
	}
}

func TestTransitionBroadcast(t *testing.T) {
	now := time.Now()
	client := &fakeClient{responses: []fakeResponse{
		{status: orchestrate.EngineStatus{IsTrained: false, FetchedAt: now}},
		{status: trained(now)},
		{status: trained(now)},
	}}
	m := NewMonitor(client, testStatusConfig(), zerolog.Nop())

	var mu sync.Mutex
	var transitions []bool
	m.OnTransition(func(s orchestrate.EngineStatus) {
		mu.Lock()
		transitions = append(transitions, s.IsTrained)
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		if _, err := m.Refresh(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	// First poll always notifies; the untrained-to-trained flip notifies;
	// the identical third poll must not.
	if len(transitions) != 2 {
		t.Fatalf("got %d transitions (%v), want 2", len(transitions), transitions)
	}
	if transitions[0] != false || transitions[1] != true {
		t.Errorf("transitions = %v, want [false true]", transitions)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{status: trained(time.Now())}}}
	cfg := config.StatusConfig{PollInterval: 10 * time.Millisecond}
	m := NewMonitor(client, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	// Let it poll a few times, then stop it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancel")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.calls < 2 {
		t.Errorf("poll loop made %d calls, want at least 2", client.calls)
	}
}
