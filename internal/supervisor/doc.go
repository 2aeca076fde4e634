// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

/*
Package supervisor runs the long-lived parts of p56watch under a suture tree.

	p56watch (root)
	├── data-layer
	│   ├── detection-engine    poll, classify, track, persist, publish
	│   ├── audit-log           admin action trail writer
	│   └── badger-store        value-log GC (badger backend only)
	├── messaging-layer
	│   ├── websocket-hub       pushes live and sealed updates
	│   └── nats                embedded server and feed connection teardown
	└── api-layer
	    └── http-server         read API, admin clear, /metrics

A service that returns an error or panics is restarted with suture's
backoff. Failures are counted per layer, so a websocket crash loop backs off
the messaging layer without pausing detection.

Supervisor events are logged through sutureslog on top of the zerolog-backed
slog handler from the logging package.
*/
package supervisor
