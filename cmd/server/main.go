// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/reelsync/internal/api"
	"github.com/tomtom215/reelsync/internal/auth"
	"github.com/tomtom215/reelsync/internal/clock"
	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/conflict"
	"github.com/tomtom215/reelsync/internal/eventbus"
	"github.com/tomtom215/reelsync/internal/feed"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/processor"
	"github.com/tomtom215/reelsync/internal/store"
	"github.com/tomtom215/reelsync/internal/supervisor"
	"github.com/tomtom215/reelsync/internal/supervisor/services"
	ws "github.com/tomtom215/reelsync/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Service: "reelsync",
		Version: version,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

//nolint:gocyclo // sequential wiring of every component
func run(cfg *config.Config) error {
	logging.Info().
		Str("version", version).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Reelsync sync server")
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	st, err := store.Open(store.Options{
		Path:           cfg.Storage.Path,
		InMemory:       cfg.Storage.InMemory,
		SyncWrites:     cfg.Storage.SyncWrites,
		GCDiscardRatio: cfg.Storage.GCDiscardRatio,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().
		Str("path", cfg.Storage.Path).
		Bool("in_memory", cfg.Storage.InMemory).
		Msg("Store opened")

	bus, err := openEventBus(cfg)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	clk := clock.System{}
	hub := ws.NewHub(clk)
	notifier := eventbus.NewFanout(bus, hub)

	proc := processor.New(st, clk, conflict.NewResolver(cfg.Sync.SkewGraceSeconds))
	builder := feed.NewBuilder(st, clk, feed.WithLimits(cfg.Sync.DefaultFeedLimit, cfg.Sync.MaxFeedLimit))

	authMw, err := newAuthMiddleware(cfg)
	if err != nil {
		return err
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS_ORIGINS=* lets any website call the API with a user's token; set explicit origins")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler, err := api.NewHandler(api.Dependencies{
		Config:    cfg,
		Clock:     clk,
		Store:     st,
		Processor: proc,
		Feed:      builder,
		Hub:       hub,
		Notifier:  notifier,
		Bus:       bus,
		Auth:      authMw,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("create API handler: %w", err)
	}

	chiMw := api.NewChiMiddlewareFromSecurity(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	)
	router := api.NewRouter(handler, chiMw, authMw)

	// WriteTimeout stays zero: the live channel holds its connection open and
	// sets its own write deadlines per frame.
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	if !cfg.Storage.InMemory {
		tree.AddDataService(services.NewStoreGCService(st, cfg.Storage.GCInterval))
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewRelayService(ws.NewRelay(bus, hub)))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped")
	return nil
}

func newAuthMiddleware(cfg *config.Config) (*auth.Middleware, error) {
	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == auth.ModeJWT {
		var err error
		jwtManager, err = auth.NewJWTManager(cfg.Security.JWTSecret, 0)
		if err != nil {
			return nil, fmt.Errorf("create JWT manager: %w", err)
		}
		logging.Info().Msg("JWT authentication enabled")
	} else {
		logging.Warn().
			Str("user_id", cfg.Security.DefaultUserID).
			Msg("Authentication is DISABLED (AUTH_MODE=none); every request acts as one user")
	}

	mw, err := auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, cfg.Security.DefaultUserID)
	if err != nil {
		return nil, fmt.Errorf("create auth middleware: %w", err)
	}
	return mw, nil
}
