// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package feed

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// ErrFeedUnavailable wraps transport failures and non-200 responses.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrMalformedFeed is returned when the snapshot envelope cannot be
	// decoded. Individual bad records never produce it.
	ErrMalformedFeed = errors.New("malformed feed")

	// ErrStaleSnapshot is returned when the fetched snapshot is not newer
	// than the last accepted one.
	ErrStaleSnapshot = errors.New("snapshot not newer than the last one")

	// ErrNoSnapshot is returned by NATSSource when nothing new arrived
	// since the last Fetch.
	ErrNoSnapshot = errors.New("no new snapshot")
)

// IsNoUpdate reports whether err only means "nothing new this cycle".
func IsNoUpdate(err error) bool {
	return errors.Is(err, ErrStaleSnapshot) || errors.Is(err, ErrNoSnapshot)
}

// Reason maps a fetch error to a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrStaleSnapshot):
		return "stale"
	case errors.Is(err, ErrNoSnapshot):
		return "no_snapshot"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrMalformedFeed):
		return "decode"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unavailable"
	}
}
