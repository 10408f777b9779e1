// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package api

import (
	"net/http"

	"github.com/davech88/reclens/internal/backend"
	"github.com/davech88/reclens/internal/logging"
	"github.com/davech88/reclens/internal/metrics"
	"github.com/davech88/reclens/internal/orchestrate"
)

// EngineStatusPayload wraps the cached engine snapshot with the derived
// routing answer.
type EngineStatusPayload struct {
	Status orchestrate.EngineStatus `json:"status"`
	Usable bool                     `json:"usable"`
}

// EngineStatus serves GET /api/v1/engine/status from the monitor cache.
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.status.Status()
	WriteSuccess(w, r, http.StatusOK, EngineStatusPayload{
		Status: snapshot,
		Usable: snapshot.Usable(),
	})
}

// TrainEngine serves POST /api/v1/engine/train: a proxied training
// trigger. The upstream call is synchronous; the backend itself decides
// whether to retrain or report the models as current.
func (h *Handler) TrainEngine(w http.ResponseWriter, r *http.Request) {
	timeFilter := r.URL.Query().Get("time_filter")
	if timeFilter == "" {
		timeFilter = defaultTimeFilter
	}
	force := r.URL.Query().Get("force_retrain") == "true"

	result, err := h.upstream.Train(r.Context(), timeFilter, force)
	if err != nil {
		WriteErrorDetails(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed,
			"training trigger failed", err.Error())
		return
	}

	logger := logging.Ctx(r.Context())
	logger.Info().
		Int("successful_models", result.SuccessfulModels).
		Int("total_models", result.TotalModels).
		Msg("training triggered")
	WriteSuccess(w, r, http.StatusOK, result)
}

// VariantPayload is the experiment inspection response.
type VariantPayload struct {
	Variant     orchestrate.Variant `json:"variant"`
	BucketValue float64             `json:"bucket_value"`
}

// Variant serves GET /api/v1/experiment/variant: the caller's experiment
// assignment and the raw bucket value behind it.
func (h *Handler) Variant(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "caller_id is required")
		return
	}

	WriteSuccess(w, r, http.StatusOK, VariantPayload{
		Variant:     h.assigner.Assign(caller, h.cfg.Experiment.RolloutPercent),
		BucketValue: orchestrate.BucketValue(caller),
	})
}

// SimilarityPayload tags the similarity list with the source that
// produced it.
type SimilarityPayload struct {
	Customers []backend.SimilarCustomer `json:"customers"`
	Source    orchestrate.Source        `json:"source"`
	Fallback  bool                      `json:"fallback"`
}

// CustomerSimilarity serves GET /api/v1/similarity/customers. The
// similarity payload is structurally different from product lists, so it
// takes the routing decision directly instead of going through the item
// router: same decision table, same single ML-to-SQL fallback.
func (h *Handler) CustomerSimilarity(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	filters := parseFilters(r)
	caller := callerID(r)
	variant := h.assigner.Assign(caller, h.cfg.Experiment.RolloutPercent)
	snapshot := h.status.Status()

	decision := orchestrate.Route(variant, snapshot)
	metrics.RecordRoutingDecision(string(decision.Family), decision.Reason)

	if decision.Family == orchestrate.SourceSQL {
		resp, err := h.upstream.SQLCustomerSimilarity(r.Context(), filters.TimeFilter, limit)
		if err != nil {
			metrics.RoutingTotalFailures.Inc()
			WriteErrorDetails(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed,
				"both recommendation sources failed", err.Error())
			return
		}
		WriteSuccess(w, r, http.StatusOK, SimilarityPayload{
			Customers: resp.Customers,
			Source:    orchestrate.SourceSQL,
			Fallback:  decision.Fallback,
		})
		return
	}

	resp, mlErr := h.upstream.MLCustomerSimilarity(r.Context(), filters.TimeFilter, limit)
	if mlErr == nil {
		WriteSuccess(w, r, http.StatusOK, SimilarityPayload{
			Customers: resp.Customers,
			Source:    orchestrate.SourceML,
		})
		return
	}

	logger := logging.Ctx(r.Context())
	logger.Warn().Err(mlErr).Msg("ml similarity failed, falling back to sql")
	metrics.RoutingFallbacks.Inc()

	resp, sqlErr := h.upstream.SQLCustomerSimilarity(r.Context(), filters.TimeFilter, limit)
	if sqlErr != nil {
		metrics.RoutingTotalFailures.Inc()
		writeOrchestrationError(w, r, &orchestrate.TotalFailureError{MLErr: mlErr, SQLErr: sqlErr})
		return
	}

	WriteSuccess(w, r, http.StatusOK, SimilarityPayload{
		Customers: resp.Customers,
		Source:    orchestrate.SourceSQL,
		Fallback:  true,
	})
}
