// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package detection turns feed snapshots into intrusion events.
//
// Pipeline, once per poll cycle:
//
//	Snapshot -> History ring -> Classifier -> Tracker -> Finalizer -> EventStore
//	                                             |            |
//	                                             v            v
//	                                       Broadcaster    Notifiers
//
// The Tracker holds one state per aircraft (Outside, Inside, ExitPending).
// An aircraft enters when the segment from its previous to its current
// sample crosses into the target zone, and exits only after ExitThreshold
// consecutive outside samples. Sealed events pass through the Finalizer,
// which folds a re-entry within DedupWindow of the previous exit into the
// previous event.
//
// The Engine serializes cycles and the admin clear operation on one mutex
// and publishes an immutable View after every cycle through an atomic
// pointer, so readers never observe a half-applied cycle.
package detection
