// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"time"

	"github.com/tomtom215/p56watch/internal/models"
)

// View is the read-side snapshot published after every cycle. A published
// View is never modified; callers must treat it as read-only.
type View struct {
	Cycle        uint64    `json:"cycle"`
	GeneratedAt  time.Time `json:"generated_at"`
	SnapshotTime time.Time `json:"snapshot_time"`

	// Live holds aircraft with an open event, ordered by aircraft ID.
	Live []models.LiveEntry `json:"live"`
	// Aircraft holds every aircraft classified in the last cycle.
	Aircraft []models.AircraftView `json:"aircraft"`
	// Events holds the most recent sealed events, newest entry first.
	Events      []*models.IntrusionEvent  `json:"events"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
}

func emptyView(now time.Time) *View {
	return &View{
		GeneratedAt: now,
		Live:        []models.LiveEntry{},
		Aircraft:    []models.AircraftView{},
		Events:      []*models.IntrusionEvent{},
		Leaderboard: []models.LeaderboardEntry{},
	}
}

// RecentEvents returns up to limit events, newest first. limit <= 0 returns
// all events in the view.
func (v *View) RecentEvents(limit int) []*models.IntrusionEvent {
	if limit <= 0 || limit >= len(v.Events) {
		return v.Events
	}
	return v.Events[:limit]
}

// LiveEntry returns the live row for an aircraft.
func (v *View) LiveEntry(aircraftID string) (models.LiveEntry, bool) {
	for _, e := range v.Live {
		if e.AircraftID == aircraftID {
			return e, true
		}
	}
	return models.LiveEntry{}, false
}

// Status summarizes engine health for operators.
type Status struct {
	Cycles              uint64    `json:"cycles"`
	SkippedCycles       uint64    `json:"skipped_cycles"`
	LastCycleAt         time.Time `json:"last_cycle_at"`
	LastCycleMs         int64     `json:"last_cycle_ms"`
	LastSnapshotAt      time.Time `json:"last_snapshot_at"`
	LastFeedError       string    `json:"last_feed_error,omitempty"`
	LastFeedErrorAt     time.Time `json:"last_feed_error_at"`
	TrackedAircraft     int       `json:"tracked_aircraft"`
	HistoryAircraft     int       `json:"history_aircraft"`
	OpenIncursions      int       `json:"open_incursions"`
	PendingCommits      int       `json:"pending_commits"`
	LiveSaveFailing     bool      `json:"live_save_failing"`
	InvariantViolations uint64    `json:"invariant_violations"`
}
