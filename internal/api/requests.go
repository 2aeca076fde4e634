// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package api

// EventsRequest holds the query of GET /api/v1/events. Limit 0 returns every
// event in the current view.
type EventsRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=1000"`
}

// EventIDRequest holds the path of GET /api/v1/events/{id}.
type EventIDRequest struct {
	ID string `json:"id" validate:"required,max=64,printascii"`
}
