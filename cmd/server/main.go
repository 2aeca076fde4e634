// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/p56watch/internal/api"
	"github.com/tomtom215/p56watch/internal/audit"
	"github.com/tomtom215/p56watch/internal/config"
	"github.com/tomtom215/p56watch/internal/detection"
	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/store"
	"github.com/tomtom215/p56watch/internal/supervisor"
	"github.com/tomtom215/p56watch/internal/supervisor/services"
	ws "github.com/tomtom215/p56watch/internal/websocket"
)

const (
	shutdownTimeout = 10 * time.Second
	auditRetention  = 1000
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("p56watch exited with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("feed_source", cfg.Feed.Source).
		Str("store", cfg.Store.Backend).
		Str("target_zone", cfg.Detection.TargetZone).
		Msg("Starting p56watch")

	classifier, err := buildClassifier(cfg.Zones)
	if err != nil {
		return err
	}

	st, err := store.Open(store.Config{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		SyncWrites: cfg.Store.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	engine, err := detection.NewEngine(detectionConfig(cfg), classifier, st, src.source)
	if err != nil {
		src.close()
		return fmt.Errorf("create engine: %w", err)
	}
	if err := engine.Restore(ctx); err != nil {
		src.close()
		return fmt.Errorf("restore live table: %w", err)
	}

	hub := ws.NewHub()
	hub.SetGreeting(welcome(engine))
	engine.SetBroadcaster(hub)
	engine.RegisterNotifier(detection.NewWebhookNotifier(detection.WebhookConfig{
		URL:       cfg.Notify.WebhookURL,
		RateLimit: cfg.Notify.WebhookRateLimit,
	}))
	natsNotifier, err := buildNATSNotifier(cfg, src)
	if err != nil {
		src.close()
		return err
	}
	engine.RegisterNotifier(natsNotifier)

	trail := audit.NewLogger(audit.NewMemoryStore(auditRetention), 0)

	router := api.NewRouter(
		api.NewHandler(engine, hub, api.HandlerConfig{
			StaleAfter:     staleAfter(cfg.Feed.PollInterval),
			AdminTokenHash: cfg.Security.AdminTokenHash,
			WSOrigins:      cfg.Security.CORSOrigins,
			Audit:          trail,
		}),
		api.NewMiddleware(middlewareConfig(cfg)),
	)
	if cfg.Security.AdminTokenHash == "" {
		logging.Warn().Msg("ADMIN_TOKEN_HASH is not set; admin clear is disabled")
	}

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: shutdownTimeout,
	})
	tree.AddDataService(engine)
	tree.AddDataService(trail)
	if gc, ok := st.(suture.Service); ok {
		tree.AddDataService(gc)
	}
	tree.AddMessagingService(hub)
	if src.nats != nil {
		tree.AddMessagingService(src.nats)
	}
	if natsNotifier.Enabled() {
		tree.AddMessagingService(natsNotifier)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, shutdownTimeout))

	err = <-tree.ServeBackground(ctx)
	if unstopped, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(unstopped) > 0 {
		for _, u := range unstopped {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop in time")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("p56watch stopped")
	return nil
}
