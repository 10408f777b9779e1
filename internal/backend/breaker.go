// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/davech88/reclens/internal/config"
	"github.com/davech88/reclens/internal/metrics"
	"github.com/davech88/reclens/internal/orchestrate"
)

// Backend is the facade over the upstream client. ML-family calls pass
// through a circuit breaker so a flapping ML service trips to the SQL
// fallback instead of accumulating slow failures; SQL-family calls go
// straight through.
//
// The breaker uses real time for its interval and timeout, so unit tests
// should mock the underlying client rather than wait out breaker windows.
type Backend struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
	logger zerolog.Logger
}

// New creates the backend facade with a configured ML circuit breaker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg config.BackendConfig, logger zerolog.Logger) *Backend {
	cbName := "ml-backend"
	cbLogger := logger.With().Str("component", "breaker").Logger()

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.Breaker.FailureRatio

			if shouldTrip {
				cbLogger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening ml circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			cbLogger.Info().Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Backend{
		client: NewClient(cfg, logger),
		cb:     cb,
		name:   cbName,
		logger: cbLogger,
	}
}

// execute wraps an ML-family call with circuit breaker protection.
func (b *Backend) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			b.logger.Warn().Err(err).Msg("ml request rejected by open circuit")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts a circuit breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// EngineStatus fetches the ML engine status with breaker protection.
func (b *Backend) EngineStatus(ctx context.Context) (orchestrate.EngineStatus, error) {
	result, err := b.execute(func() (interface{}, error) {
		status, err := b.client.EngineStatus(ctx)
		if err != nil {
			return nil, err
		}
		return &status, nil
	})
	if err != nil {
		return orchestrate.EngineStatus{}, err
	}

	status, ok := result.(*orchestrate.EngineStatus)
	if !ok {
		return orchestrate.EngineStatus{}, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return *status, nil
}

// Train triggers ML training with breaker protection.
func (b *Backend) Train(ctx context.Context, timeFilter string, forceRetrain bool) (*TrainResponse, error) {
	return castResult[TrainResponse](b.execute(func() (interface{}, error) {
		return b.client.Train(ctx, timeFilter, forceRetrain)
	}))
}

// MLCollaborativeProducts fetches the ML product list with breaker
// protection.
func (b *Backend) MLCollaborativeProducts(ctx context.Context, timeFilter, category string, limit int) (*ProductsResponse, error) {
	return castResult[ProductsResponse](b.execute(func() (interface{}, error) {
		return b.client.MLCollaborativeProducts(ctx, timeFilter, category, limit)
	}))
}

// PersonalizeRecommendations fetches per-customer recommendations with
// breaker protection.
func (b *Backend) PersonalizeRecommendations(ctx context.Context, customerID string, numResults int) (*PersonalizeResponse, error) {
	return castResult[PersonalizeResponse](b.execute(func() (interface{}, error) {
		return b.client.PersonalizeRecommendations(ctx, customerID, numResults)
	}))
}

// MLCustomerSimilarity fetches ML customer similarity with breaker
// protection.
func (b *Backend) MLCustomerSimilarity(ctx context.Context, timeFilter string, limit int) (*SimilarityResponse, error) {
	return castResult[SimilarityResponse](b.execute(func() (interface{}, error) {
		return b.client.MLCustomerSimilarity(ctx, timeFilter, limit)
	}))
}

// RFMSegments fetches RFM segment summaries with breaker protection.
func (b *Backend) RFMSegments(ctx context.Context, timeFilter string) (*RFMSegmentsResponse, error) {
	return castResult[RFMSegmentsResponse](b.execute(func() (interface{}, error) {
		return b.client.RFMSegments(ctx, timeFilter)
	}))
}

// SQLCollaborativeProducts fetches the deterministic product list. No
// breaker: the SQL family is the fallback of last resort.
func (b *Backend) SQLCollaborativeProducts(ctx context.Context, timeFilter, category string, limit int) (*ProductsResponse, error) {
	return b.client.SQLCollaborativeProducts(ctx, timeFilter, category, limit)
}

// SQLCustomerSimilarity fetches the co-purchase similarity heuristic.
func (b *Backend) SQLCustomerSimilarity(ctx context.Context, timeFilter string, limit int) (*SimilarityResponse, error) {
	return b.client.SQLCustomerSimilarity(ctx, timeFilter, limit)
}

// Customers fetches the customer group behind a region or segment.
func (b *Backend) Customers(ctx context.Context, scope, name, timeFilter string) ([]orchestrate.Entity, error) {
	return b.client.Customers(ctx, scope, name, timeFilter)
}

// Dashboard fetches the analytics dashboard payload.
func (b *Backend) Dashboard(ctx context.Context, timeFilter string) (json.RawMessage, error) {
	return b.client.Dashboard(ctx, timeFilter)
}

// CollaborativeMetrics fetches the collaborative metrics payload.
func (b *Backend) CollaborativeMetrics(ctx context.Context, timeFilter string) (json.RawMessage, error) {
	return b.client.CollaborativeMetrics(ctx, timeFilter)
}
