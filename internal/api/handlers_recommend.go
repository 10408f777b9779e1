// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davech88/reclens/internal/backend"
	"github.com/davech88/reclens/internal/logging"
	"github.com/davech88/reclens/internal/orchestrate"
)

// RoutedRecommendations is the payload of the single-fetch recommendation
// endpoints.
type RoutedRecommendations struct {
	Items    []orchestrate.RecommendationItem `json:"items"`
	Decision orchestrate.Decision             `json:"decision"`
	Variant  orchestrate.Algorithm            `json:"variant"`
}

// CrossSelling serves GET /api/v1/recommendations/cross-selling: the
// routed group-level product list, ML when the caller's variant and the
// engine allow it, SQL otherwise.
func (h *Handler) CrossSelling(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	caller := callerID(r)
	variant := h.assigner.Assign(caller, h.cfg.Experiment.RolloutPercent)
	snapshot := h.status.Status()

	req := orchestrate.Request{
		Operation: backend.OpCrossSelling,
		CallerID:  caller,
		Filters:   parseFilters(r),
		Limit:     limit,
	}

	items, decision, err := h.router.Fetch(r.Context(), req, variant, snapshot)
	if err != nil {
		writeOrchestrationError(w, r, err)
		return
	}

	WriteSuccess(w, r, http.StatusOK, RoutedRecommendations{
		Items:    items,
		Decision: decision,
		Variant:  variant.Algorithm,
	})
}

// RegionRecommendations serves GET /api/v1/recommendations/region: a
// fan-out aggregate over the sampled customers of a city or province.
func (h *Handler) RegionRecommendations(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope != "city" && scope != "province" {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "scope must be city or province")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	h.serveAggregate(w, r, scope, name)
}

// SegmentRecommendations serves GET /api/v1/recommendations/segment/{segment}:
// a fan-out aggregate over an RFM segment's sampled customers.
func (h *Handler) SegmentRecommendations(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "segment")
	if segment == "" {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "segment is required")
		return
	}

	h.serveAggregate(w, r, "segment", segment)
}

// serveAggregate runs the shared fan-out path: resolve the entity group,
// begin an epoch for the filter state, fan out per-entity fetches through
// the router, and aggregate.
func (h *Handler) serveAggregate(w http.ResponseWriter, r *http.Request, scope, name string) {
	limit, err := h.parseLimit(r)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	filters := parseFilters(r)
	filters.Scope = scope
	filters.ScopeName = name

	entities, err := h.upstream.Customers(r.Context(), scope, name, filters.TimeFilter)
	if err != nil {
		WriteErrorDetails(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed,
			"failed to resolve the customer group", err.Error())
		return
	}

	caller := callerID(r)
	variant := h.assigner.Assign(caller, h.cfg.Experiment.RolloutPercent)
	snapshot := h.status.Status()
	epoch := h.epochs.Begin(filters)

	fetch := func(ctx context.Context, entity orchestrate.Entity, ep orchestrate.Epoch) ([]orchestrate.RecommendationItem, error) {
		req := orchestrate.Request{
			Operation: backend.OpPersonalize,
			CallerID:  caller,
			EntityID:  entity.ID,
			Filters:   ep.Filters,
		}
		items, _, err := h.router.Fetch(ctx, req, variant, snapshot)
		return items, err
	}

	result, err := h.aggregator.Aggregate(r.Context(), entities, fetch, epoch, orchestrate.FanoutOptions{
		SampleSize:        h.cfg.Fanout.SampleSize,
		Concurrency:       h.cfg.Fanout.Concurrency,
		PerRequestTimeout: h.cfg.Fanout.PerRequestTimeout,
		RatePerSecond:     h.cfg.Fanout.RatePerSecond,
		Burst:             h.cfg.Fanout.Burst,
		TopN:              limit,
	})
	if err != nil {
		writeOrchestrationError(w, r, err)
		return
	}

	// A newer filter state may have begun a fresh epoch while this batch
	// was in flight; its result must never reach the dashboard.
	if !h.epochs.Admit(result.Epoch) {
		logger := logging.Ctx(r.Context())
		logger.Info().
			Str("epoch", result.Epoch.ID).
			Msg("dropping aggregate from a superseded filter state")
		WriteError(w, r, http.StatusConflict, ErrCodeRequestSuperseded,
			"the filter state changed while this request was in flight")
		return
	}

	WriteSuccess(w, r, http.StatusOK, result)
}
