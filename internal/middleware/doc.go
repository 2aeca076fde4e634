// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

/*
Package middleware holds the HTTP middleware shared by every API route.

  - RequestID tags each request with an X-Request-ID (taken from the caller
    or generated as a UUID) and seeds the logging context with it.
  - PrometheusMetrics records request counts and latency per chi route
    pattern, so /api/v1/events/{id} is one series regardless of the id.

Both are plain func(http.Handler) http.Handler and plug into chi's r.Use.
*/
package middleware
