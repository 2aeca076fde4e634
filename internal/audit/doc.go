// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package audit keeps a trail of administrative actions against the event
// log: every clear attempt, whether it succeeded, was denied, or failed.
//
// Log never blocks the request path. Events are queued and written by
// Logger.Serve, which runs as a supervised service and drains the queue on
// shutdown. The default MemoryStore keeps the newest events in a bounded
// slice; the trail is operational context, not durable compliance storage.
package audit
