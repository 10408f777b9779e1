// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// RecordRoutingDecision records a routing decision outcome.
func RecordRoutingDecision(family, reason string) {
	RoutingDecisions.WithLabelValues(family, reason).Inc()
}

// RecordUpstreamRequest records the duration and outcome of an upstream call.
func RecordUpstreamRequest(family, operation string, duration time.Duration, err error) {
	UpstreamRequestDuration.WithLabelValues(family, operation).Observe(duration.Seconds())
	if err != nil {
		UpstreamRequestErrors.WithLabelValues(family, operation, ClassifyError(err)).Inc()
	}
}

// RecordEntityFetch records a single per-entity fetch outcome inside a fan-out.
func RecordEntityFetch(err error) {
	switch {
	case err == nil:
		FanoutEntityFetches.WithLabelValues("success").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		FanoutEntityFetches.WithLabelValues("timeout").Inc()
	default:
		FanoutEntityFetches.WithLabelValues("failure").Inc()
	}
}

// ClassifyError maps an error to a low-cardinality label value.
// Raw error strings must never become label values.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	case strings.Contains(err.Error(), "connection refused"):
		return "network"
	default:
		return "other"
	}
}
