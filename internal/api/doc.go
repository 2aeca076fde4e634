// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

/*
Package api serves the read side of the detection engine over HTTP.

Every read handler answers from the engine's most recently published View,
so requests never wait on a detection cycle and never observe one half
applied.

# Routes

	GET  /api/v1/health/live      process is up
	GET  /api/v1/health/ready     at least one cycle ran and the last one is recent
	GET  /api/v1/live             aircraft with an open incursion
	GET  /api/v1/events?limit=N   sealed incursions, newest first
	GET  /api/v1/events/{id}      one sealed incursion, from the view or the log
	GET  /api/v1/aircraft         every aircraft classified in the last cycle
	GET  /api/v1/leaderboard      sealed incursions per pilot
	GET  /api/v1/status           engine counters
	POST /api/v1/admin/clear      empty the event log (X-Admin-Token)
	GET  /api/v1/admin/audit      recent admin actions (X-Admin-Token)
	GET  /api/v1/ws               websocket push of live and sealed updates
	GET  /metrics                 Prometheus exposition

# Responses

JSON bodies use models.APIResponse. Errors carry a stable code:

	VALIDATION_ERROR  bad query parameter (400)
	NOT_FOUND         unknown event id (404)
	UNAUTHORIZED      admin token missing or wrong (401)
	NOT_READY         engine has not completed a recent cycle (503)
	INTERNAL_ERROR    persistence failure during clear (500)

# Middleware

The router applies request ids, real-IP resolution, panic recovery and CORS
globally. API routes add security headers, Prometheus instrumentation and
per-IP rate limiting; the admin route has a much tighter limit of its own.
*/
package api
