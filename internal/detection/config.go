// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"fmt"
	"time"

	"github.com/tomtom215/p56watch/internal/geo"
)

// Config tunes the tracker, history ring and finalizer.
type Config struct {
	// TargetZone is the zone whose entry and exit produce events.
	TargetZone geo.Label `json:"target_zone"`

	// HistoryCapacity is the per-aircraft ring size.
	HistoryCapacity int `json:"history_capacity"`

	// PreEntrySamples seed a new event from the history ring.
	PreEntrySamples int `json:"pre_entry_samples"`

	// MinSpacing is the smallest gap between two stored positions.
	MinSpacing time.Duration `json:"min_spacing"`

	// MaxPositions caps an event's position list.
	MaxPositions int `json:"max_positions"`

	// ExitThreshold is the number of consecutive outside samples that seal
	// an event.
	ExitThreshold int `json:"exit_threshold"`

	// DedupWindow merges a re-entry into the previous event when the new
	// entry is at most this long after the previous exit.
	DedupWindow time.Duration `json:"dedup_window"`

	// PollInterval drives Serve.
	PollInterval time.Duration `json:"poll_interval"`

	// ViewEventLimit bounds the events carried in the published View.
	ViewEventLimit int `json:"view_event_limit"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TargetZone:      geo.LabelP56,
		HistoryCapacity: 10,
		PreEntrySamples: 7,
		MinSpacing:      time.Second,
		MaxPositions:    200,
		ExitThreshold:   10,
		DedupWindow:     60 * time.Second,
		PollInterval:    12 * time.Second,
		ViewEventLimit:  500,
	}
}

// Validate reports the first unusable value.
func (c Config) Validate() error {
	if !c.TargetZone.Restricted() {
		return fmt.Errorf("target zone %q is not a restricted zone", c.TargetZone)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be at least 1, got %d", c.HistoryCapacity)
	}
	if c.PreEntrySamples < 0 || c.PreEntrySamples > c.HistoryCapacity {
		return fmt.Errorf("pre-entry samples must be in [0, %d], got %d", c.HistoryCapacity, c.PreEntrySamples)
	}
	if c.MinSpacing < 0 {
		return fmt.Errorf("min spacing must not be negative")
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("max positions must be at least 1, got %d", c.MaxPositions)
	}
	if c.ExitThreshold < 1 {
		return fmt.Errorf("exit threshold must be at least 1, got %d", c.ExitThreshold)
	}
	if c.DedupWindow < 0 {
		return fmt.Errorf("dedup window must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.ViewEventLimit < 1 {
		return fmt.Errorf("view event limit must be at least 1, got %d", c.ViewEventLimit)
	}
	return nil
}
