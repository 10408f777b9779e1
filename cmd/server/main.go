// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Command server runs the Reclens gateway: the dashboard-facing HTTP API,
// the engine status monitor, and the WebSocket status hub, all under one
// supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/davech88/reclens/internal/api"
	"github.com/davech88/reclens/internal/backend"
	"github.com/davech88/reclens/internal/config"
	"github.com/davech88/reclens/internal/logging"
	"github.com/davech88/reclens/internal/orchestrate"
	"github.com/davech88/reclens/internal/status"
	"github.com/davech88/reclens/internal/supervisor"
	"github.com/davech88/reclens/internal/variantstore"
	"github.com/davech88/reclens/internal/websocket"
)

// Build information, injected via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reclens: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("environment", cfg.Server.Environment).
		Msg("starting reclens")

	// Variant persistence is optional; without a store path, experiment
	// assignments live only for the process lifetime.
	var store orchestrate.VariantStore
	if cfg.Experiment.StorePath != "" {
		badgerStore, err := variantstore.Open(cfg.Experiment.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open variant store: %w", err)
		}
		defer func() {
			if err := badgerStore.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close variant store")
			}
		}()
		store = badgerStore
		logger.Info().Str("path", cfg.Experiment.StorePath).Msg("variant store opened")
	}

	be := backend.New(cfg.Backend, logger)
	assigner := orchestrate.NewAssigner(store, logger)
	router := orchestrate.NewRouter(be, logger)
	aggregator := orchestrate.NewAggregator(cfg.Fanout.RatePerSecond, cfg.Fanout.Burst, logger)
	epochs := orchestrate.NewEpochTracker(orchestrate.FilterSnapshot{TimeFilter: "30d"})

	monitor := status.NewMonitor(be, cfg.Status, logger)
	hub := websocket.NewHub(logger)
	monitor.OnTransition(hub.BroadcastEngineStatus)

	handler := api.NewHandler(
		cfg,
		router,
		assigner,
		epochs,
		aggregator,
		monitor,
		be,
		websocket.NewUpgradeHandler(hub, cfg.Server.CORSOrigins),
		logger,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMonitoringService(monitor)
	tree.AddMonitoringService(hub)
	tree.AddAPIService(supervisor.NewHTTPService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("addr", server.Addr).Msg("serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor exited: %w", err)
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
