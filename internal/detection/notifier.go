// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"context"

	"github.com/tomtom215/p56watch/internal/models"
)

// Broadcast message types.
const (
	MessageIncursionOpened = "incursion_opened"
	MessageIncursionSealed = "incursion_sealed"
	MessageLiveUpdate      = "live_update"
)

// Broadcaster pushes engine updates to connected dashboards.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// Notifier delivers sealed incursions to an outbound channel.
type Notifier interface {
	// Send delivers one sealed event.
	Send(ctx context.Context, ev *SealedNotice) error

	// Name returns the notifier name (e.g., "webhook").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// SealedNotice is the payload of an incursion_sealed message.
type SealedNotice struct {
	Event  *models.IntrusionEvent `json:"event"`
	Merged bool                   `json:"merged"`
}

// LiveNotice is the payload of a live_update message.
type LiveNotice struct {
	Cycle uint64             `json:"cycle"`
	Live  []models.LiveEntry `json:"live"`
}
