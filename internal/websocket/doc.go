// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

/*
Package websocket pushes incursion activity to dashboard clients.

The Hub implements detection.Broadcaster. Every message the engine emits
(incursion_opened, incursion_sealed, live_update) is queued without blocking
and fanned out to each connected Client in connection order. A client that
cannot keep up is disconnected instead of stalling the others.

	engine ──BroadcastJSON──▶ Hub ──▶ Client 1 (readPump / writePump)
	                           ├───▶ Client 2
	                           └───▶ Client N

New clients receive a greeting built by the function passed to SetGreeting,
normally the current live view, so a dashboard renders immediately instead
of waiting for the next poll cycle.

Clients may send {"type":"ping"} and receive {"type":"pong"}. Anything else
they send is ignored.

Hub.Serve is a suture service; cancelling its context closes every client.
*/
package websocket
