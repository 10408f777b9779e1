// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package api is the dashboard-facing HTTP surface: routed recommendation
// endpoints, fan-out aggregates, engine status and training, experiment
// inspection, analytics pass-throughs, and the status WebSocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/backend"
	"github.com/davech88/reclens/internal/config"
	"github.com/davech88/reclens/internal/orchestrate"
)

// defaultTimeFilter is applied when the dashboard does not pass one.
const defaultTimeFilter = "30d"

// errBadLimit rejects non-numeric or non-positive limit parameters.
var errBadLimit = errors.New("limit must be a positive integer")

// Upstream is the slice of the backend facade the handlers call directly,
// outside the router. Satisfied by *backend.Backend.
type Upstream interface {
	Train(ctx context.Context, timeFilter string, forceRetrain bool) (*backend.TrainResponse, error)
	MLCustomerSimilarity(ctx context.Context, timeFilter string, limit int) (*backend.SimilarityResponse, error)
	SQLCustomerSimilarity(ctx context.Context, timeFilter string, limit int) (*backend.SimilarityResponse, error)
	Customers(ctx context.Context, scope, name, timeFilter string) ([]orchestrate.Entity, error)
	RFMSegments(ctx context.Context, timeFilter string) (*backend.RFMSegmentsResponse, error)
	Dashboard(ctx context.Context, timeFilter string) (json.RawMessage, error)
	CollaborativeMetrics(ctx context.Context, timeFilter string) (json.RawMessage, error)
}

// StatusProvider serves the cached engine status snapshot. Satisfied by
// *status.Monitor.
type StatusProvider interface {
	Status() orchestrate.EngineStatus
}

// Handler holds the dependencies behind the HTTP endpoints.
type Handler struct {
	cfg        *config.Config
	router     *orchestrate.Router
	assigner   *orchestrate.Assigner
	epochs     *orchestrate.EpochTracker
	aggregator *orchestrate.Aggregator
	status     StatusProvider
	upstream   Upstream
	wsHandler  http.HandlerFunc
	logger     zerolog.Logger
}

// NewHandler creates the API handler set. wsHandler may be nil when the
// WebSocket status stream is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(
	cfg *config.Config,
	router *orchestrate.Router,
	assigner *orchestrate.Assigner,
	epochs *orchestrate.EpochTracker,
	aggregator *orchestrate.Aggregator,
	statusProvider StatusProvider,
	upstream Upstream,
	wsHandler http.HandlerFunc,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		cfg:        cfg,
		router:     router,
		assigner:   assigner,
		epochs:     epochs,
		aggregator: aggregator,
		status:     statusProvider,
		upstream:   upstream,
		wsHandler:  wsHandler,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// NewRouter assembles the chi router with the full middleware chain.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Metrics)
	r.Use(SecurityHeaders)
	r.Use(CORS(h.cfg.Server.CORSOrigins))
	r.Use(RateLimit(h.cfg.Server))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// The browser WebSocket API cannot set an Authorization header, so the
	// status stream sits outside JWT auth; it only ever carries data the
	// status endpoint serves anyway.
	if h.wsHandler != nil {
		r.Get("/ws/status", h.wsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if h.cfg.Server.AuthMode == "jwt" {
			r.Use(JWTAuth(h.cfg.Server.JWTSecret))
		}

		r.Get("/recommendations/cross-selling", h.CrossSelling)
		r.Get("/recommendations/region", h.RegionRecommendations)
		r.Get("/recommendations/segment/{segment}", h.SegmentRecommendations)
		r.Get("/similarity/customers", h.CustomerSimilarity)
		r.Get("/engine/status", h.EngineStatus)
		r.Post("/engine/train", h.TrainEngine)
		r.Get("/experiment/variant", h.Variant)
		r.Get("/analytics/dashboard", h.Dashboard)
		r.Get("/analytics/collaborative-metrics", h.CollaborativeMetrics)
		r.Get("/analytics/rfm-segments", h.RFMSegments)
	})

	return r
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type callerKey struct{}

func contextWithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerKey{}, callerID)
}

// callerID resolves the caller identity for variant assignment: the
// explicit caller_id query parameter wins, then the JWT subject.
func callerID(r *http.Request) string {
	if id := r.URL.Query().Get("caller_id"); id != "" {
		return id
	}
	if id, ok := r.Context().Value(callerKey{}).(string); ok {
		return id
	}
	return ""
}

// parseFilters reads the shared dashboard filter parameters.
func parseFilters(r *http.Request) orchestrate.FilterSnapshot {
	q := r.URL.Query()
	filters := orchestrate.FilterSnapshot{
		TimeFilter: q.Get("time_filter"),
		Category:   q.Get("category"),
	}
	if filters.TimeFilter == "" {
		filters.TimeFilter = defaultTimeFilter
	}
	return filters
}

// parseLimit reads the limit parameter, clamped to [1, max].
func (h *Handler) parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.cfg.Fanout.DefaultTopN, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errBadLimit
	}
	if limit > h.cfg.Fanout.MaxTopN {
		limit = h.cfg.Fanout.MaxTopN
	}
	return limit, nil
}

// writeOrchestrationError maps orchestration failures onto the error
// envelope. A total failure means both sources were tried and neither
// answered; everything else is an internal error.
func writeOrchestrationError(w http.ResponseWriter, r *http.Request, err error) {
	if orchestrate.IsTotalFailure(err) {
		WriteErrorDetails(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed,
			"both recommendation sources failed", err.Error())
		return
	}
	WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "internal error")
}
