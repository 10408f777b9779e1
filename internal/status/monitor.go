// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package status polls the ML engine's training status and caches the
// last-known-good snapshot for routing decisions. Handlers never block on
// a live status call; they read the cache.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/config"
	"github.com/davech88/reclens/internal/metrics"
	"github.com/davech88/reclens/internal/orchestrate"
)

// Client fetches the engine status from the upstream backend.
// Implemented by the backend package; an interface here avoids a
// circular import.
type Client interface {
	EngineStatus(ctx context.Context) (orchestrate.EngineStatus, error)
}

// TransitionFunc receives status snapshots whose routing-relevant state
// (trained or stale) changed since the previous snapshot.
type TransitionFunc func(orchestrate.EngineStatus)

// Monitor polls the engine status on an interval and serves the cached
// snapshot. Poll failures keep the last-known-good status; past the
// staleness threshold the snapshot is marked stale and routing fails safe
// to SQL. Safe for concurrent use.
type Monitor struct {
	client         Client
	pollInterval   time.Duration
	staleThreshold time.Duration
	logger         zerolog.Logger
	now            func() time.Time

	mu        sync.RWMutex
	current   orchestrate.EngineStatus
	haveFetch bool

	subMu       sync.Mutex
	subscribers []TransitionFunc
}

// NewMonitor creates an engine status monitor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMonitor(client Client, cfg config.StatusConfig, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client:         client,
		pollInterval:   cfg.PollInterval,
		staleThreshold: cfg.StaleThreshold(),
		logger:         logger.With().Str("component", "status").Logger(),
		now:            time.Now,
	}
}

// OnTransition registers a callback invoked when the routing-relevant
// status (trained flag or staleness) changes. Callbacks run on the
// polling goroutine and must not block.
func (m *Monitor) OnTransition(fn TransitionFunc) {
	m.subMu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.subMu.Unlock()
}

// Status returns the cached snapshot with staleness evaluated at read
// time. Before the first successful poll it reports an untrained engine,
// which routes everything to SQL.
func (m *Monitor) Status() orchestrate.EngineStatus {
	m.mu.RLock()
	s := m.current
	fetched := m.haveFetch
	m.mu.RUnlock()

	if !fetched {
		return orchestrate.EngineStatus{Stale: true}
	}

	age := m.now().Sub(s.FetchedAt)
	metrics.EngineStatusStalenessSeconds.Set(age.Seconds())
	if age > m.staleThreshold {
		s.Stale = true
	}
	return s
}

// Refresh polls the backend once and updates the cache. On failure the
// cached snapshot survives untouched; staleness accrues through Status.
func (m *Monitor) Refresh(ctx context.Context) (orchestrate.EngineStatus, error) {
	fresh, err := m.client.EngineStatus(ctx)
	if err != nil {
		metrics.EngineStatusPolls.WithLabelValues("failure").Inc()
		m.logger.Warn().Err(err).Msg("engine status poll failed, keeping last-known-good")
		return m.Status(), err
	}

	metrics.EngineStatusPolls.WithLabelValues("success").Inc()
	if fresh.IsTrained {
		metrics.EngineTrained.Set(1)
	} else {
		metrics.EngineTrained.Set(0)
	}

	m.mu.Lock()
	previous := m.current
	hadFetch := m.haveFetch
	m.current = fresh
	m.haveFetch = true
	m.mu.Unlock()

	if !hadFetch || previous.Usable() != fresh.Usable() || previous.IsTrained != fresh.IsTrained {
		m.logger.Info().
			Bool("is_trained", fresh.IsTrained).
			Time("trained_at", fresh.TrainedAt).
			Msg("engine status transition")
		m.broadcast(fresh)
	}

	return fresh, nil
}

func (m *Monitor) broadcast(s orchestrate.EngineStatus) {
	m.subMu.Lock()
	subs := make([]TransitionFunc, len(m.subscribers))
	copy(subs, m.subscribers)
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Serve implements the suture.Service interface: an immediate poll, then
// a refresh every poll interval until the context is canceled.
func (m *Monitor) Serve(ctx context.Context) error {
	m.logger.Info().
		Dur("poll_interval", m.pollInterval).
		Dur("stale_threshold", m.staleThreshold).
		Msg("engine status monitor starting")

	if _, err := m.Refresh(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("initial status poll failed (will retry on schedule)")
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("engine status monitor shutting down")
			return ctx.Err()

		case <-ticker.C:
			//nolint:errcheck // Poll failures are logged and degrade to stale
			m.Refresh(ctx)
		}
	}
}

// String returns the service name for supervisor logging.
func (m *Monitor) String() string {
	return "status-monitor"
}
