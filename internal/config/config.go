// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package config holds all application configuration, loaded via Koanf v2
// with layered sources (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml)
//  3. Environment variables (BACKEND_BASE_URL, EXPERIMENT_ROLLOUT_PERCENT, ...)
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Backend    BackendConfig    `koanf:"backend"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Status     StatusConfig     `koanf:"status"`
	Fanout     FanoutConfig     `koanf:"fanout"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the dashboard-facing HTTP server.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `koanf:"host" validate:"required"`

	// Port is the listen port. Default: 8742
	Port int `koanf:"port" validate:"gt=0,lte=65535"`

	// Timeout is the per-request server timeout.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// Environment is "development" or "production". Production requires a
	// JWT secret when auth is enabled.
	Environment string `koanf:"environment" validate:"oneof=development production"`

	// AuthMode selects API authentication: "none" or "jwt".
	AuthMode string `koanf:"auth_mode" validate:"oneof=none jwt"`

	// JWTSecret signs/verifies dashboard session bearer tokens.
	// Required when AuthMode is "jwt".
	JWTSecret string `koanf:"jwt_secret"`

	// CORSOrigins lists allowed CORS origins for dashboard clients.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs is the per-client request budget per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimitReqs int `koanf:"rate_limit_reqs" validate:"gte=0"`

	// RateLimitWindow is the rate limit window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// BackendConfig configures the upstream recommendation backend.
// Both endpoint families (ML and SQL analytics) live behind one base URL.
type BackendConfig struct {
	// BaseURL is the upstream backend base URL, e.g. http://backend:9000/api.
	BaseURL string `koanf:"base_url" validate:"required"`

	// Token is an optional static bearer token for service-to-service calls.
	// Per-request dashboard tokens, when present, take precedence.
	Token string `koanf:"token"`

	// RequestTimeout bounds each upstream HTTP request.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// Breaker configures the ML endpoint circuit breaker.
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the sony/gobreaker circuit breaker guarding the
// ML endpoint family. The SQL family is deliberately unguarded: it is the
// fallback of last resort.
type BreakerConfig struct {
	// MaxRequests allowed through in half-open state.
	MaxRequests uint32 `koanf:"max_requests" validate:"gt=0"`

	// Interval resets failure counts while closed.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// Timeout before an open breaker transitions to half-open.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// FailureRatio opens the breaker once reached (with MinRequests seen).
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`

	// MinRequests is the minimum sample size before tripping.
	MinRequests uint32 `koanf:"min_requests" validate:"gt=0"`
}

// ExperimentConfig configures ML rollout variant assignment.
type ExperimentConfig struct {
	// RolloutPercent of callers assigned the ML path (0-100).
	RolloutPercent int `koanf:"rollout_percent" validate:"gte=0,lte=100"`

	// StorePath is the BadgerDB directory for persisted assignments.
	// Empty keeps assignments in memory only.
	StorePath string `koanf:"store_path"`
}

// StatusConfig configures the engine status monitor.
type StatusConfig struct {
	// PollInterval between status refreshes.
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`

	// StaleAfter is how old a cached status may get before the engine is
	// treated as not trained for routing. Zero means 3x PollInterval.
	StaleAfter time.Duration `koanf:"stale_after" validate:"gte=0"`
}

// FanoutConfig configures fan-out aggregation over entity groups.
type FanoutConfig struct {
	// SampleSize is how many entities are sampled per group.
	SampleSize int `koanf:"sample_size" validate:"gt=0"`

	// Concurrency bounds in-flight per-entity fetches.
	Concurrency int `koanf:"concurrency" validate:"gt=0"`

	// PerRequestTimeout bounds each per-entity fetch.
	PerRequestTimeout time.Duration `koanf:"per_request_timeout" validate:"gt=0"`

	// RatePerSecond limits upstream fetch rate across a batch.
	// Zero disables rate limiting.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gte=0"`

	// Burst is the rate limiter burst size.
	Burst int `koanf:"burst" validate:"gte=0"`

	// DefaultTopN is the aggregate list size when the caller does not ask.
	DefaultTopN int `koanf:"default_top_n" validate:"gt=0"`

	// MaxTopN caps the caller-requested aggregate list size.
	MaxTopN int `koanf:"max_top_n" validate:"gt=0"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is "json" or "console".
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file/line in log output.
	Caller bool `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8742,
			Timeout:         30 * time.Second,
			Environment:     "development",
			AuthMode:        "jwt",
			JWTSecret:       "",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Backend: BackendConfig{
			BaseURL:        "",
			Token:          "",
			RequestTimeout: 10 * time.Second,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				FailureRatio: 0.6,
				MinRequests:  10,
			},
		},
		Experiment: ExperimentConfig{
			RolloutPercent: 0, // Opt-in: nobody gets the ML path until configured
			StorePath:      "",
		},
		Status: StatusConfig{
			PollInterval: 30 * time.Second,
			StaleAfter:   0, // 3x poll interval
		},
		Fanout: FanoutConfig{
			SampleSize:        5,
			Concurrency:       5,
			PerRequestTimeout: 5 * time.Second,
			RatePerSecond:     20,
			Burst:             5,
			DefaultTopN:       10,
			MaxTopN:           100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for structural and cross-field errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid backend.base_url %q: %w", c.Backend.BaseURL, err)
	}

	if c.Server.AuthMode == "jwt" && c.Server.Environment == "production" && len(c.Server.JWTSecret) < 32 {
		return fmt.Errorf("server.jwt_secret must be at least 32 characters in production")
	}

	if c.Fanout.DefaultTopN > c.Fanout.MaxTopN {
		return fmt.Errorf("fanout.default_top_n (%d) exceeds fanout.max_top_n (%d)",
			c.Fanout.DefaultTopN, c.Fanout.MaxTopN)
	}

	if c.Fanout.RatePerSecond > 0 && c.Fanout.Burst == 0 {
		return fmt.Errorf("fanout.burst must be set when fanout.rate_per_second is enabled")
	}

	return nil
}

// StaleThreshold returns the effective staleness threshold.
func (c *StatusConfig) StaleThreshold() time.Duration {
	if c.StaleAfter > 0 {
		return c.StaleAfter
	}
	return 3 * c.PollInterval
}
