// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/p56watch/internal/logging"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateZones(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateFeed() error {
	switch c.Feed.Source {
	case "http":
		if c.Feed.URL == "" {
			return fmt.Errorf("FEED_URL is required when FEED_SOURCE=http")
		}
		if !strings.HasPrefix(c.Feed.URL, "http://") && !strings.HasPrefix(c.Feed.URL, "https://") {
			return fmt.Errorf("FEED_URL must start with http:// or https://, got %q", c.Feed.URL)
		}
	case "nats":
		if (c.NATS.URL == "" && !c.NATS.Embedded) || c.NATS.Subject == "" {
			return fmt.Errorf("NATS_URL and NATS_SUBJECT are required when FEED_SOURCE=nats")
		}
		if c.NATS.Embedded && (c.NATS.EmbeddedPort < 1 || c.NATS.EmbeddedPort > 65535) {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535, got %d", c.NATS.EmbeddedPort)
		}
	default:
		return fmt.Errorf("FEED_SOURCE must be http or nats, got %q", c.Feed.Source)
	}
	if c.Feed.PollInterval <= 0 {
		return fmt.Errorf("FEED_POLL_INTERVAL must be positive, got %v", c.Feed.PollInterval)
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive, got %v", c.Feed.Timeout)
	}
	if c.Feed.RateLimit < 0 {
		return fmt.Errorf("FEED_RATE_LIMIT must not be negative, got %v", c.Feed.RateLimit)
	}
	return nil
}

func (c *Config) validateZones() error {
	z := c.Zones
	if z.Path == "" {
		return fmt.Errorf("ZONES_PATH is required")
	}
	switch z.Priority {
	case "restrictive", "frz_first":
	default:
		return fmt.Errorf("ZONE_PRIORITY must be restrictive or frz_first, got %q", z.Priority)
	}
	switch z.GroundPolicy {
	case "cascade", "simple":
	default:
		return fmt.Errorf("GROUND_POLICY must be cascade or simple, got %q", z.GroundPolicy)
	}
	if z.AltitudeCeilingFt <= 0 {
		return fmt.Errorf("ALTITUDE_CEILING_FT must be positive, got %v", z.AltitudeCeilingFt)
	}
	if z.CenterLatitude < -90 || z.CenterLatitude > 90 {
		return fmt.Errorf("CENTER_LATITUDE out of range: %v", z.CenterLatitude)
	}
	if z.CenterLongitude < -180 || z.CenterLongitude > 180 {
		return fmt.Errorf("CENTER_LONGITUDE out of range: %v", z.CenterLongitude)
	}
	if z.RadiusNM <= 0 {
		return fmt.Errorf("MONITOR_RADIUS_NM must be positive, got %v", z.RadiusNM)
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	switch d.TargetZone {
	case "P56", "FRZ", "SFRA":
	default:
		return fmt.Errorf("TARGET_ZONE must be P56, FRZ or SFRA, got %q", d.TargetZone)
	}
	if d.HistoryCapacity < 1 {
		return fmt.Errorf("HISTORY_CAPACITY must be at least 1, got %d", d.HistoryCapacity)
	}
	if d.PreEntrySamples < 0 || d.PreEntrySamples > d.HistoryCapacity {
		return fmt.Errorf("PRE_ENTRY_SAMPLES must be between 0 and HISTORY_CAPACITY (%d), got %d",
			d.HistoryCapacity, d.PreEntrySamples)
	}
	if d.MinSpacing < 0 {
		return fmt.Errorf("MIN_SPACING must not be negative, got %v", d.MinSpacing)
	}
	if d.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1, got %d", d.MaxPositions)
	}
	if d.ExitThreshold < 1 {
		return fmt.Errorf("EXIT_THRESHOLD must be at least 1, got %d", d.ExitThreshold)
	}
	if d.DedupWindow < 0 {
		return fmt.Errorf("DEDUP_WINDOW must not be negative, got %v", d.DedupWindow)
	}
	if d.ViewEventLimit < 1 {
		return fmt.Errorf("VIEW_EVENT_LIMIT must be at least 1, got %d", d.ViewEventLimit)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "memory":
		return nil
	case "badger", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required for the %s backend", c.Store.Backend)
		}
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be badger, sqlite or memory, got %q", c.Store.Backend)
	}
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive unless DISABLE_RATE_LIMIT=true")
		}
	}
	if c.Server.Environment == "production" && c.Security.AdminTokenHash == "" {
		logging.Warn().Msg("ADMIN_TOKEN_HASH is not set; the admin clear endpoint is disabled")
	}
	return nil
}

func (c *Config) validateNotify() error {
	u := c.Notify.WebhookURL
	if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("WEBHOOK_URL must start with http:// or https://, got %q", u)
	}
	if c.Notify.WebhookRateLimit < 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must not be negative, got %v", c.Notify.WebhookRateLimit)
	}
	if s := c.Notify.NATSSubject; s != "" {
		if strings.ContainsAny(s, " \t*>") {
			return fmt.Errorf("NOTIFY_NATS_SUBJECT must be a literal subject, got %q", s)
		}
		if c.NATS.URL == "" && !(c.NATS.Embedded && c.Feed.Source == "nats") {
			return fmt.Errorf("NOTIFY_NATS_SUBJECT requires NATS_URL or an embedded NATS feed")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a recognized level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
