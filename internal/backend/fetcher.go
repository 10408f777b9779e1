// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package backend

import (
	"context"
	"fmt"

	"github.com/davech88/reclens/internal/orchestrate"
)

// Logical operations the router can dispatch to the backend.
const (
	// OpCrossSelling is a group-level product recommendation fetch.
	OpCrossSelling = "cross_selling"

	// OpPersonalize is a per-entity recommendation fetch (fan-out unit).
	// Request.EntityID names the customer.
	OpPersonalize = "personalize"
)

// FetchML executes a logical request against the ML endpoint family.
// Implements orchestrate.Fetcher.
func (b *Backend) FetchML(ctx context.Context, req orchestrate.Request) ([]orchestrate.RecommendationItem, error) {
	switch req.Operation {
	case OpCrossSelling:
		resp, err := b.MLCollaborativeProducts(ctx, req.Filters.TimeFilter, req.Filters.Category, req.Limit)
		if err != nil {
			return nil, err
		}
		return toItems(resp.Products, ""), nil

	case OpPersonalize:
		resp, err := b.PersonalizeRecommendations(ctx, req.EntityID, req.Limit)
		if err != nil {
			return nil, err
		}
		return toItems(resp.Recommendations, req.EntityID), nil

	default:
		return nil, fmt.Errorf("unknown operation %q", req.Operation)
	}
}

// FetchSQL executes a logical request against the SQL endpoint family.
// Implements orchestrate.Fetcher.
//
// The per-entity fallback is the deterministic popular-products list; it
// carries no personalization but keeps the dashboard populated when the
// ML path is down.
func (b *Backend) FetchSQL(ctx context.Context, req orchestrate.Request) ([]orchestrate.RecommendationItem, error) {
	switch req.Operation {
	case OpCrossSelling:
		resp, err := b.SQLCollaborativeProducts(ctx, req.Filters.TimeFilter, req.Filters.Category, req.Limit)
		if err != nil {
			return nil, err
		}
		return toItems(resp.Products, ""), nil

	case OpPersonalize:
		resp, err := b.SQLCollaborativeProducts(ctx, req.Filters.TimeFilter, req.Filters.Category, req.Limit)
		if err != nil {
			return nil, err
		}
		return toItems(resp.Products, req.EntityID), nil

	default:
		return nil, fmt.Errorf("unknown operation %q", req.Operation)
	}
}
