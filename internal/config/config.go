// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Feed      FeedConfig      `koanf:"feed"`
	NATS      NATSConfig      `koanf:"nats"`
	Zones     ZonesConfig     `koanf:"zones"`
	Detection DetectionConfig `koanf:"detection"`
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Notify    NotifyConfig    `koanf:"notify"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// FeedConfig describes where aircraft snapshots come from.
type FeedConfig struct {
	// Source is "http" (poll the data feed URL) or "nats" (latest message on a subject).
	Source       string        `koanf:"source"`
	URL          string        `koanf:"url"`
	UserAgent    string        `koanf:"user_agent"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Timeout      time.Duration `koanf:"timeout"`
	// RateLimit caps outbound fetches per second, independent of PollInterval.
	RateLimit float64 `koanf:"rate_limit"`
}

// NATSConfig is only read when Feed.Source is "nats".
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
	Name    string `koanf:"name"`
	// Embedded starts an in-process server on EmbeddedPort and ignores URL.
	Embedded     bool `koanf:"embedded"`
	EmbeddedPort int  `koanf:"embedded_port"`
}

// ZonesConfig configures boundary loading and label classification.
type ZonesConfig struct {
	// Path is a GeoJSON FeatureCollection; each feature carries a "zone" property.
	Path string `koanf:"path"`
	// Priority is "restrictive" (P56, FRZ, SFRA) or "frz_first" (FRZ, P56, SFRA).
	Priority string `koanf:"priority"`
	// GroundPolicy is "cascade" or "simple".
	GroundPolicy      string  `koanf:"ground_policy"`
	AltitudeCeilingFt float64 `koanf:"altitude_ceiling_ft"`
	CenterLatitude    float64 `koanf:"center_latitude"`
	CenterLongitude   float64 `koanf:"center_longitude"`
	RadiusNM          float64 `koanf:"radius_nm"`
}

// DetectionConfig tunes the intrusion state machine.
type DetectionConfig struct {
	TargetZone      string        `koanf:"target_zone"`
	HistoryCapacity int           `koanf:"history_capacity"`
	PreEntrySamples int           `koanf:"pre_entry_samples"`
	MinSpacing      time.Duration `koanf:"min_spacing"`
	MaxPositions    int           `koanf:"max_positions"`
	ExitThreshold   int           `koanf:"exit_threshold"`
	DedupWindow     time.Duration `koanf:"dedup_window"`
	ViewEventLimit  int           `koanf:"view_event_limit"`
}

// StoreConfig selects the event store backend.
type StoreConfig struct {
	// Backend is "badger", "sqlite" or "memory".
	Backend    string `koanf:"backend"`
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// SecurityConfig gates the admin endpoint and throttles readers.
type SecurityConfig struct {
	// AdminTokenHash is a bcrypt hash of the admin token. Empty disables admin clear.
	AdminTokenHash    string        `koanf:"admin_token_hash"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// NotifyConfig configures outbound notifications for sealed incursions.
type NotifyConfig struct {
	// WebhookURL receives a POST per sealed incursion. Empty disables it.
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookRateLimit time.Duration `koanf:"webhook_rate_limit"`
	// NATSSubject receives a message per sealed incursion on the NATS
	// server named by nats.url (or the embedded one). Empty disables it.
	NATSSubject string `koanf:"nats_subject"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns host:port.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
