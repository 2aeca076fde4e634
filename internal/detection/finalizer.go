// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/models"
)

// PriorLookup finds an aircraft's most recent committed event. The event
// store satisfies it.
type PriorLookup interface {
	LastForAircraft(ctx context.Context, aircraftID string) (*models.IntrusionEvent, error)
}

// Finalizer decides whether a sealed event is new or a continuation of the
// aircraft's previous event. It remembers the last sealed event per
// aircraft and falls back to the store after a restart.
//
// Finalizer is not safe for concurrent use; the Engine calls it under the
// cycle lock, so no two cycles finalize the same aircraft concurrently.
type Finalizer struct {
	window       time.Duration
	spacing      time.Duration
	maxPositions int
	lookup       PriorLookup
	last         map[string]*models.IntrusionEvent
}

// NewFinalizer returns a Finalizer. lookup may be nil.
func NewFinalizer(cfg Config, lookup PriorLookup) *Finalizer {
	return &Finalizer{
		window:       cfg.DedupWindow,
		spacing:      cfg.MinSpacing,
		maxPositions: cfg.MaxPositions,
		lookup:       lookup,
		last:         make(map[string]*models.IntrusionEvent),
	}
}

// Finalize returns the event to commit for a freshly sealed event and
// whether it was merged into an earlier one. A merged result keeps the
// earlier event's ID so committing it replaces the stored version.
func (f *Finalizer) Finalize(ctx context.Context, ev *models.IntrusionEvent) (*models.IntrusionEvent, bool) {
	prior := f.prior(ctx, ev.AircraftID)
	if prior == nil || !f.withinWindow(prior, ev) {
		f.last[ev.AircraftID] = ev
		return ev.Clone(), false
	}

	merged := prior.Clone()
	for _, s := range ev.Positions {
		appendPosition(merged, s, f.spacing, f.maxPositions)
	}
	merged.ExitTime = ev.ExitTime
	merged.Exit = ev.Exit
	merged.Merges += 1 + ev.Merges
	merged.Capped = merged.Capped || ev.Capped

	f.last[ev.AircraftID] = merged
	logging.Debug().
		Str("aircraft_id", ev.AircraftID).
		Str("event_id", merged.ID).
		Time("reentry", ev.EntryTime).
		Msg("Re-entry merged into previous incursion")
	return merged.Clone(), true
}

func (f *Finalizer) prior(ctx context.Context, aircraftID string) *models.IntrusionEvent {
	if ev, ok := f.last[aircraftID]; ok {
		return ev
	}
	if f.lookup == nil {
		return nil
	}
	ev, err := f.lookup.LastForAircraft(ctx, aircraftID)
	if err != nil {
		logging.Warn().Err(err).Str("aircraft_id", aircraftID).Msg("Previous incursion lookup failed; treating as new")
		return nil
	}
	return ev
}

func (f *Finalizer) withinWindow(prior, ev *models.IntrusionEvent) bool {
	if prior.ExitTime == nil {
		return false
	}
	gap := ev.EntryTime.Sub(*prior.ExitTime)
	return gap >= 0 && gap <= f.window
}

// Remember records ev as the aircraft's last sealed event unless a newer
// one is already known. Restore uses it for events still awaiting commit,
// which the store fallback cannot see.
func (f *Finalizer) Remember(ev *models.IntrusionEvent) {
	if ev == nil || ev.ExitTime == nil {
		return
	}
	if cur, ok := f.last[ev.AircraftID]; ok && cur.EntryTime.After(ev.EntryTime) {
		return
	}
	f.last[ev.AircraftID] = ev.Clone()
}

// Prune forgets sealed events whose dedup window ended before now.
func (f *Finalizer) Prune(now time.Time) {
	for id, ev := range f.last {
		if ev.ExitTime == nil || now.Sub(*ev.ExitTime) > f.window {
			delete(f.last, id)
		}
	}
}

// Reset forgets every remembered event.
func (f *Finalizer) Reset() {
	f.last = make(map[string]*models.IntrusionEvent)
}
