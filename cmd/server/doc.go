// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

/*
Command server runs p56watch: it polls a VATSIM-style data feed, classifies
every aircraft near Washington DC against the P-56, FRZ and SFRA boundaries,
records each intrusion into the target zone from confirmed entry to confirmed
exit, and serves the results over HTTP and websocket.

# Startup

 1. Configuration: koanf layers defaults, config.yaml (or CONFIG_PATH) and
    environment variables, then validates.
 2. Logging: zerolog, JSON or console.
 3. Zones: GeoJSON boundaries from ZONES_PATH, wrapped in a classifier with
    the configured priority, ground policy, ceiling and monitoring radius.
 4. Store: badger (default), sqlite or memory.
 5. Feed: HTTP polling, or the newest snapshot on a NATS subject, optionally
    served by an embedded NATS server.
 6. Engine: restores the live table, then publishes a view every cycle.
 7. Supervisor tree: engine, store GC and audit trail, websocket hub and
    NATS, HTTP.

# Environment

	FEED_SOURCE=http             http or nats
	FEED_URL=https://data.vatsim.net/v3/vatsim-data.json
	FEED_POLL_INTERVAL=12s
	NATS_URL / NATS_SUBJECT      when FEED_SOURCE=nats
	NATS_EMBEDDED=true           run the NATS server in process
	ZONES_PATH=zones.geojson
	ZONE_PRIORITY=restrictive    restrictive or frz_first
	GROUND_POLICY=cascade        cascade or simple
	STORE_BACKEND=badger         badger, sqlite or memory
	STORE_PATH=./data/events
	HTTP_PORT=8056
	ADMIN_TOKEN_HASH=<bcrypt>    enables POST /api/v1/admin/clear
	CORS_ORIGINS=https://dash.example.com
	WEBHOOK_URL=                 POST per sealed incursion
	NOTIFY_NATS_SUBJECT=         publish per sealed incursion over NATS
	LOG_LEVEL=info
	LOG_FORMAT=json

An admin token hash can be produced with any bcrypt tool, for example
htpasswd -bnBC 10 "" <token> | tr -d ':\n'.

# Signals

SIGINT and SIGTERM stop the tree. Each service gets ten seconds to finish;
the HTTP server drains in-flight requests and the engine completes its
current cycle before the store is closed.
*/
package main
