// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("should not appear")
	Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Error("debug message emitted at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing at warn level")
	}
}

func TestContextRequestID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")

	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext = %q, want %q", got, "req-123")
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext on empty context = %q, want empty", got)
	}
}

func TestCtxReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := NewTestLogger(&buf).With().Str("component", "test").Logger()

	ctx := ContextWithLogger(context.Background(), stored)
	logger := Ctx(ctx)
	logger.Info().Msg("from context")

	if !strings.Contains(buf.String(), `"component":"test"`) {
		t.Errorf("context logger not used, output: %q", buf.String())
	}
}

func TestSlogAdapterWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Info("supervised", slog.String("service", "status-monitor"))

	out := buf.String()
	if !strings.Contains(out, `"service":"status-monitor"`) {
		t.Errorf("slog attribute not forwarded, output: %q", out)
	}
	if !strings.Contains(out, "supervised") {
		t.Errorf("slog message not forwarded, output: %q", out)
	}
}

func TestSlogAdapterGroups(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger().WithGroup("tree").With(slog.String("node", "api"))
	slogger.Warn("restarting")

	if !strings.Contains(buf.String(), `"tree.node":"api"`) {
		t.Errorf("grouped attribute not prefixed, output: %q", buf.String())
	}
}
