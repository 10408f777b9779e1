// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
)

// Dashboard serves GET /api/v1/analytics/dashboard: an opaque
// pass-through of the SQL analytics dashboard payload.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.passThrough(w, r, h.upstream.Dashboard)
}

// CollaborativeMetrics serves GET /api/v1/analytics/collaborative-metrics
// as an opaque pass-through.
func (h *Handler) CollaborativeMetrics(w http.ResponseWriter, r *http.Request) {
	h.passThrough(w, r, h.upstream.CollaborativeMetrics)
}

// RFMSegments serves GET /api/v1/analytics/rfm-segments from the
// breaker-guarded ML family.
func (h *Handler) RFMSegments(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	resp, err := h.upstream.RFMSegments(r.Context(), filters.TimeFilter)
	if err != nil {
		WriteErrorDetails(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed,
			"rfm segment fetch failed", err.Error())
		return
	}
	WriteSuccess(w, r, http.StatusOK, resp)
}

// passThrough forwards an upstream payload untouched inside the standard
// envelope. The payload shape is backend-defined and the dashboard
// consumes it as-is.
func (h *Handler) passThrough(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) (json.RawMessage, error)) {
	filters := parseFilters(r)
	payload, err := fetch(r.Context(), filters.TimeFilter)
	if err != nil {
		WriteErrorDetails(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed,
			"analytics fetch failed", err.Error())
		return
	}
	WriteSuccess(w, r, http.StatusOK, payload)
}
