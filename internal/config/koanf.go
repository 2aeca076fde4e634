// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/p56watch/config.yaml",
	"/etc/p56watch/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			Source:       "http",
			URL:          "https://data.vatsim.net/v3/vatsim-data.json",
			UserAgent:    "p56watch/1.0",
			PollInterval: 12 * time.Second,
			Timeout:      10 * time.Second,
			RateLimit:    0.5,
		},
		NATS: NATSConfig{
			URL:          "nats://127.0.0.1:4222",
			Subject:      "feed.snapshot",
			Name:         "p56watch",
			EmbeddedPort: 4222,
		},
		Zones: ZonesConfig{
			Path:              "zones.geojson",
			Priority:          "restrictive",
			GroundPolicy:      "cascade",
			AltitudeCeilingFt: 18000,
			CenterLatitude:    38.8977,
			CenterLongitude:   -77.0365,
			RadiusNM:          300,
		},
		Detection: DetectionConfig{
			TargetZone:      "P56",
			HistoryCapacity: 10,
			PreEntrySamples: 7,
			MinSpacing:      time.Second,
			MaxPositions:    200,
			ExitThreshold:   10,
			DedupWindow:     60 * time.Second,
			ViewEventLimit:  500,
		},
		Store: StoreConfig{
			Backend:    "badger",
			Path:       "./data/events",
			SyncWrites: true,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8056,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Notify: NotifyConfig{
			WebhookRateLimit: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers defaults, the optional config file and the
// environment (highest precedence), then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
// YAML lists are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"feed_source":        "feed.source",
	"feed_url":           "feed.url",
	"feed_user_agent":    "feed.user_agent",
	"feed_poll_interval": "feed.poll_interval",
	"feed_timeout":       "feed.timeout",
	"feed_rate_limit":    "feed.rate_limit",

	"nats_url":     "nats.url",
	"nats_subject": "nats.subject",
	"nats_name":    "nats.name",

	"nats_embedded":      "nats.embedded",
	"nats_embedded_port": "nats.embedded_port",

	"zones_path":          "zones.path",
	"zone_priority":       "zones.priority",
	"ground_policy":       "zones.ground_policy",
	"altitude_ceiling_ft": "zones.altitude_ceiling_ft",
	"center_latitude":     "zones.center_latitude",
	"center_longitude":    "zones.center_longitude",
	"monitor_radius_nm":   "zones.radius_nm",

	"target_zone":       "detection.target_zone",
	"history_capacity":  "detection.history_capacity",
	"pre_entry_samples": "detection.pre_entry_samples",
	"min_spacing":       "detection.min_spacing",
	"max_positions":     "detection.max_positions",
	"exit_threshold":    "detection.exit_threshold",
	"dedup_window":      "detection.dedup_window",
	"view_event_limit":  "detection.view_event_limit",

	"store_backend":     "store.backend",
	"store_path":        "store.path",
	"store_sync_writes": "store.sync_writes",

	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	"admin_token_hash":    "security.admin_token_hash",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"webhook_url":         "notify.webhook_url",
	"webhook_rate_limit":  "notify.webhook_rate_limit",
	"notify_nats_subject": "notify.nats_subject",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known env names (FEED_URL, HTTP_PORT, ...) onto
// koanf paths. Unknown names map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
