// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, "none"},
		{"deadline exceeded", context.DeadlineExceeded, "timeout"},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"net timeout", &net.DNSError{IsTimeout: true}, "timeout"},
		{"net error", &net.DNSError{}, "network"},
		{"connection refused string", errors.New("dial tcp: connection refused"), "network"},
		{"anything else", errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestRecordRoutingDecision(t *testing.T) {
	before := testutil.ToFloat64(RoutingDecisions.WithLabelValues("sql", "control_variant"))

	RecordRoutingDecision("sql", "control_variant")

	after := testutil.ToFloat64(RoutingDecisions.WithLabelValues("sql", "control_variant"))
	if after != before+1 {
		t.Errorf("routing decision counter = %v, want %v", after, before+1)
	}
}

func TestRecordEntityFetch(t *testing.T) {
	successBefore := testutil.ToFloat64(FanoutEntityFetches.WithLabelValues("success"))
	timeoutBefore := testutil.ToFloat64(FanoutEntityFetches.WithLabelValues("timeout"))
	failureBefore := testutil.ToFloat64(FanoutEntityFetches.WithLabelValues("failure"))

	RecordEntityFetch(nil)
	RecordEntityFetch(fmt.Errorf("wait: %w", context.DeadlineExceeded))
	RecordEntityFetch(errors.New("boom"))

	if got := testutil.ToFloat64(FanoutEntityFetches.WithLabelValues("success")); got != successBefore+1 {
		t.Errorf("success counter = %v, want %v", got, successBefore+1)
	}
	if got := testutil.ToFloat64(FanoutEntityFetches.WithLabelValues("timeout")); got != timeoutBefore+1 {
		t.Errorf("timeout counter = %v, want %v", got, timeoutBefore+1)
	}
	if got := testutil.ToFloat64(FanoutEntityFetches.WithLabelValues("failure")); got != failureBefore+1 {
		t.Errorf("failure counter = %v, want %v", got, failureBefore+1)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	errBefore := testutil.ToFloat64(UpstreamRequestErrors.WithLabelValues("ml", "status", "other"))

	RecordUpstreamRequest("ml", "status", 25*time.Millisecond, errors.New("boom"))
	RecordUpstreamRequest("ml", "status", 10*time.Millisecond, nil)

	if got := testutil.ToFloat64(UpstreamRequestErrors.WithLabelValues("ml", "status", "other")); got != errBefore+1 {
		t.Errorf("upstream error counter = %v, want %v", got, errBefore+1)
	}
}
