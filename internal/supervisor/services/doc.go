// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package services adapts components without a context-driven Serve method
// to suture.Service.
//
// The detection engine, the websocket hub and the badger store already
// implement Serve(ctx) and String, so they are added to the tree directly.
// This package covers the rest:
//
//   - HTTPServerService turns ListenAndServe/Shutdown into Serve(ctx).
//   - NATSService owns the embedded NATS server and the feed connection and
//     tears both down when the tree stops.
package services
