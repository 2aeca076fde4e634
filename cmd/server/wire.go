// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package main

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/p56watch/internal/api"
	"github.com/tomtom215/p56watch/internal/config"
	"github.com/tomtom215/p56watch/internal/detection"
	"github.com/tomtom215/p56watch/internal/feed"
	"github.com/tomtom215/p56watch/internal/geo"
	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/supervisor/services"
	ws "github.com/tomtom215/p56watch/internal/websocket"
)

func buildClassifier(zc config.ZonesConfig) (*geo.Classifier, error) {
	zones, err := geo.LoadZones(zc.Path)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	priority, err := geo.ParsePriority(zc.Priority)
	if err != nil {
		return nil, err
	}
	ground, err := geo.ParseGroundPolicy(zc.GroundPolicy)
	if err != nil {
		return nil, err
	}
	c, err := geo.NewClassifier(geo.ClassifierConfig{
		Zones:             zones,
		Priority:          priority,
		Ground:            ground,
		AltitudeCeilingFt: zc.AltitudeCeilingFt,
		Center:            geo.Point{Lat: zc.CenterLatitude, Lon: zc.CenterLongitude},
		RadiusNM:          zc.RadiusNM,
	})
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	logging.Info().Int("zones", len(zones)).Str("path", zc.Path).Msg("Zone boundaries loaded")
	return c, nil
}

func detectionConfig(cfg *config.Config) detection.Config {
	target, _ := geo.ParseLabel(cfg.Detection.TargetZone)
	return detection.Config{
		TargetZone:      target,
		HistoryCapacity: cfg.Detection.HistoryCapacity,
		PreEntrySamples: cfg.Detection.PreEntrySamples,
		MinSpacing:      cfg.Detection.MinSpacing,
		MaxPositions:    cfg.Detection.MaxPositions,
		ExitThreshold:   cfg.Detection.ExitThreshold,
		DedupWindow:     cfg.Detection.DedupWindow,
		PollInterval:    cfg.Feed.PollInterval,
		ViewEventLimit:  cfg.Detection.ViewEventLimit,
	}
}

func middlewareConfig(cfg *config.Config) *api.MiddlewareConfig {
	mw := api.DefaultMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mw.RateLimitRequests = cfg.Security.RateLimitReqs
	mw.RateLimitWindow = cfg.Security.RateLimitWindow
	mw.RateLimitDisabled = cfg.Security.RateLimitDisabled
	mw.HTTPS = cfg.Server.Environment == "production"
	return mw
}

// staleAfter allows a few missed polls before readiness fails.
func staleAfter(poll time.Duration) time.Duration {
	return 5 * poll
}

// welcome greets a new dashboard with the current view so it does not wait a
// full cycle for its first update.
func welcome(engine *detection.Engine) ws.Greeting {
	return func() (ws.Message, bool) {
		v := engine.View()
		return ws.Message{Type: ws.MessageTypeWelcome, Data: v}, true
	}
}

// feedSource is the engine's input plus the NATS lifecycle, when used.
type feedSource struct {
	source detection.Source
	nats   *services.NATSService
	// natsURL is the server the feed subscribed to, embedded or not.
	natsURL string
}

// close releases NATS resources when startup fails before the tree owns them.
func (f feedSource) close() {
	if f.nats != nil {
		f.nats.Close()
	}
}

func buildSource(cfg *config.Config) (feedSource, error) {
	if cfg.Feed.Source != "nats" {
		logging.Info().Str("url", cfg.Feed.URL).Dur("interval", cfg.Feed.PollInterval).Msg("Polling HTTP feed")
		return feedSource{source: feed.NewHTTPSource(feed.HTTPConfig{
			URL:       cfg.Feed.URL,
			UserAgent: cfg.Feed.UserAgent,
			Timeout:   cfg.Feed.Timeout,
			RateLimit: cfg.Feed.RateLimit,
		})}, nil
	}

	url := cfg.NATS.URL
	var server services.NATSServer
	if cfg.NATS.Embedded {
		embedded, err := feed.StartEmbeddedServer("127.0.0.1", cfg.NATS.EmbeddedPort)
		if err != nil {
			return feedSource{}, fmt.Errorf("start embedded NATS: %w", err)
		}
		server = embedded
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	nc, err := feed.ConnectNATS(url, cfg.NATS.Name)
	if err != nil {
		services.NewNATSService(nil, nil, server).Close()
		return feedSource{}, fmt.Errorf("connect NATS: %w", err)
	}
	src, err := feed.NewNATSSource(nc, cfg.NATS.Subject)
	if err != nil {
		services.NewNATSService(nil, nc, server).Close()
		return feedSource{}, err
	}
	return feedSource{source: src, nats: services.NewNATSService(src, nc, server), natsURL: url}, nil
}

// buildNATSNotifier publishes sealed incursions to the feed's NATS server
// when there is one, otherwise to nats.url.
func buildNATSNotifier(cfg *config.Config, src feedSource) (*detection.NATSNotifier, error) {
	url := src.natsURL
	if url == "" {
		url = cfg.NATS.URL
	}
	n, err := detection.NewNATSNotifier(detection.NATSNotifierConfig{
		URL:     url,
		Subject: cfg.Notify.NATSSubject,
		Name:    cfg.NATS.Name + "-notify",
	}, watermill.NewSlogLogger(logging.NewSlogLogger()))
	if err != nil {
		return nil, fmt.Errorf("create NATS notifier: %w", err)
	}
	if n.Enabled() {
		logging.Info().Str("url", url).Str("subject", cfg.Notify.NATSSubject).Msg("Publishing sealed incursions to NATS")
	}
	return n, nil
}
