// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package feed fetches aircraft snapshots and converts them into validated
// models.Snapshot values.
//
// The wire format is the VATSIM data feed (general.update_timestamp plus a
// pilots array). Each pilot record is decoded and validated on its own, so
// a malformed record is skipped and counted instead of failing the whole
// snapshot.
//
// Two sources are provided:
//   - HTTPSource polls the feed URL behind a rate limiter and a circuit
//     breaker, and rejects snapshots that are not newer than the last one.
//   - NATSSource keeps the newest snapshot published on a subject and hands
//     each one out once.
package feed
