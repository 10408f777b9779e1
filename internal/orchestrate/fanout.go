// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/davech88/reclens/internal/metrics"
)

// FanoutOptions configures a fan-out aggregation batch.
type FanoutOptions struct {
	// SampleSize is how many entities to sample from the group.
	SampleSize int

	// Concurrency bounds in-flight per-entity fetches. Values below 1 are
	// treated as 1.
	Concurrency int

	// PerRequestTimeout bounds each per-entity fetch. One slow entity can
	// never stall the batch beyond its own timeout.
	PerRequestTimeout time.Duration

	// RatePerSecond limits upstream fetch rate across the batch.
	// Zero disables rate limiting.
	RatePerSecond float64

	// Burst is the rate limiter burst size.
	Burst int

	// TopN truncates the aggregate list. Zero keeps everything.
	TopN int
}

// FetchFunc fetches one entity's recommendations under an epoch.
type FetchFunc func(ctx context.Context, entity Entity, epoch Epoch) ([]RecommendationItem, error)

// AggregateResult is the outcome of one fan-out aggregation batch.
type AggregateResult struct {
	// Items is the ranked, deduplicated aggregate list.
	Items []AggregatedRecommendation `json:"items"`

	// SampledEntities is how many entities were actually fetched.
	SampledEntities int `json:"sampled_entities"`

	// SucceededEntities is how many per-entity fetches succeeded.
	SucceededEntities int `json:"succeeded_entities"`

	// FailedEntityIDs lists the entities whose fetches failed, sorted.
	FailedEntityIDs []string `json:"failed_entity_ids,omitempty"`

	// PartialFailure is set when some but not all entity fetches failed.
	// It is metadata for the UI's "based on partial data" indicator, not
	// an error.
	PartialFailure bool `json:"partial_failure"`

	// Epoch is the epoch the batch was issued under.
	Epoch Epoch `json:"epoch"`
}

// Aggregator fans out per-entity recommendation fetches and folds the
// results into a single ranked list. It is safe for concurrent use; each
// Aggregate call is an independent batch.
type Aggregator struct {
	logger  zerolog.Logger
	limiter *rate.Limiter
}

// NewAggregator creates a fan-out aggregator. ratePerSecond of zero
// disables upstream rate limiting.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregator(ratePerSecond float64, burst int, logger zerolog.Logger) *Aggregator {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}

	return &Aggregator{
		logger:  logger.With().Str("component", "fanout").Logger(),
		limiter: limiter,
	}
}

// entityResult holds one settled per-entity fetch.
type entityResult struct {
	entity Entity
	items  []RecommendationItem
	err    error
}

// Aggregate samples entities, fetches their recommendations with bounded
// concurrency, and aggregates the settled results.
//
// Every fetch settles independently; one failure never aborts the batch.
// An empty entity group yields an empty result. Zero successes over a
// non-empty sample fail the whole batch with *TotalFailureError; any
// success proceeds with partial data and PartialFailure metadata.
func (a *Aggregator) Aggregate(ctx context.Context, entities []Entity, fetch FetchFunc, epoch Epoch, opts FanoutOptions) (*AggregateResult, error) {
	start := time.Now()
	defer func() {
		metrics.FanoutDuration.WithLabelValues(epoch.Filters.Scope).Observe(time.Since(start).Seconds())
	}()

	sampled := SampleEntities(entities, opts.SampleSize)
	if len(sampled) == 0 {
		return &AggregateResult{
			Items: []AggregatedRecommendation{},
			Epoch: epoch,
		}, nil
	}

	results := a.fetchAll(ctx, sampled, fetch, epoch, opts)

	succeeded := 0
	failedIDs := make([]string, 0)
	var lastErr error
	items := make([]RecommendationItem, 0, len(results)*8)

	for _, res := range results {
		metrics.RecordEntityFetch(res.err)
		if res.err != nil {
			failedIDs = append(failedIDs, res.entity.ID)
			lastErr = res.err
			continue
		}
		succeeded++
		items = append(items, res.items...)
	}
	sort.Strings(failedIDs)

	if succeeded == 0 {
		a.logger.Error().
			Int("entities", len(sampled)).
			Err(lastErr).
			Msg("fan-out batch failed entirely")
		return nil, &TotalFailureError{FailedEntities: len(sampled), LastErr: lastErr}
	}

	partial := len(failedIDs) > 0
	if partial {
		metrics.FanoutPartialBatches.Inc()
		a.logger.Warn().
			Int("succeeded", succeeded).
			Int("failed", len(failedIDs)).
			Msg("fan-out batch completed with partial data")
	}

	return &AggregateResult{
		Items:             AggregateItems(items, opts.TopN),
		SampledEntities:   len(sampled),
		SucceededEntities: succeeded,
		FailedEntityIDs:   failedIDs,
		PartialFailure:    partial,
		Epoch:             epoch,
	}, nil
}

// fetchAll issues per-entity fetches with bounded concurrency and settles
// every one of them.
func (a *Aggregator) fetchAll(ctx context.Context, sampled []Entity, fetch FetchFunc, epoch Epoch, opts FanoutOptions) []entityResult {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]entityResult, len(sampled))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for i, entity := range sampled {
		idx, ent := i, entity

		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			items, err := a.fetchOne(egCtx, ent, fetch, epoch, opts)

			mu.Lock()
			results[idx] = entityResult{entity: ent, items: items, err: err}
			mu.Unlock()

			// Errors settle into results; returning them would cancel the
			// sibling fetches and break allSettled semantics.
			return nil
		})
	}

	_ = eg.Wait()
	return results
}

// fetchOne runs a single per-entity fetch with rate limiting and timeout.
func (a *Aggregator) fetchOne(ctx context.Context, entity Entity, fetch FetchFunc, epoch Epoch, opts FanoutOptions) ([]RecommendationItem, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	fetchCtx := ctx
	if opts.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, opts.PerRequestTimeout)
		defer cancel()
	}

	return fetch(fetchCtx, entity, epoch)
}

// SampleEntities deterministically samples up to sampleSize entities:
// highest value first, ties broken by ID ascending. Repeated calls with
// the same inputs return the same sample, which keeps aggregation
// reproducible.
func SampleEntities(entities []Entity, sampleSize int) []Entity {
	if len(entities) == 0 || sampleSize <= 0 {
		return nil
	}

	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].ID < sorted[j].ID
	})

	if len(sorted) > sampleSize {
		sorted = sorted[:sampleSize]
	}
	return sorted
}

// AggregateItems groups per-entity items by product and computes the
// aggregate statistics.
//
// A product's average score is the mean over only the entities that
// returned it; entities that did not return the product contribute no
// phantom zero. Support is the count of distinct contributing entities.
// The output order is fully deterministic: support descending, then
// average score descending, then product ID ascending.
func AggregateItems(items []RecommendationItem, topN int) []AggregatedRecommendation {
	type group struct {
		name       string
		scoreSum   float64
		scoreCount int
		entities   map[string]struct{}
	}

	groups := make(map[string]*group)
	for _, item := range items {
		g, ok := groups[item.ProductID]
		if !ok {
			g = &group{entities: make(map[string]struct{})}
			groups[item.ProductID] = g
		}
		if g.name == "" {
			g.name = item.ProductName
		}
		g.scoreSum += item.Score
		g.scoreCount++
		g.entities[item.EntityID] = struct{}{}
	}

	aggregated := make([]AggregatedRecommendation, 0, len(groups))
	for productID, g := range groups {
		contributors := make([]string, 0, len(g.entities))
		for id := range g.entities {
			contributors = append(contributors, id)
		}
		sort.Strings(contributors)

		aggregated = append(aggregated, AggregatedRecommendation{
			ProductID:             productID,
			ProductName:           g.name,
			AvgScore:              g.scoreSum / float64(g.scoreCount),
			SupportCount:          len(g.entities),
			ContributingEntityIDs: contributors,
		})
	}

	sort.Slice(aggregated, func(i, j int) bool {
		if aggregated[i].SupportCount != aggregated[j].SupportCount {
			return aggregated[i].SupportCount > aggregated[j].SupportCount
		}
		if aggregated[i].AvgScore != aggregated[j].AvgScore {
			return aggregated[i].AvgScore > aggregated[j].AvgScore
		}
		return aggregated[i].ProductID < aggregated[j].ProductID
	})

	if topN > 0 && len(aggregated) > topN {
		aggregated = aggregated[:topN]
	}
	return aggregated
}
