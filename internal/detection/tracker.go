// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/p56watch/internal/geo"
	"github.com/tomtom215/p56watch/internal/models"
)

// ErrInvariantViolation marks a tracker state that should be impossible.
var ErrInvariantViolation = errors.New("tracker invariant violated")

// Observation is one classified sample of one aircraft, the input to Step.
type Observation struct {
	Aircraft *models.AircraftSnapshot
	Sample   models.PositionSample
	// Label is the display label for this cycle.
	Label geo.Label
	// Inside reports that the sample is within the target zone and below
	// the altitude ceiling.
	Inside bool
	// Crossed reports that the segment from the previous sample to this one
	// enters the target zone.
	Crossed bool
}

// Outcome reports what a Step or Missing call changed.
type Outcome struct {
	// Opened is a copy of a newly opened event.
	Opened *models.IntrusionEvent
	// Sealed is an event whose exit was confirmed. The caller owns it.
	Sealed *models.IntrusionEvent
}

type track struct {
	id        string
	callsign  string
	pilotID   string
	pilotName string

	state   models.TrackState
	outside int
	buster  bool

	last    models.PositionSample
	hasLast bool
	label   geo.Label

	event *models.IntrusionEvent
}

// Tracker is the per-aircraft intrusion state machine. It is a keyed arena:
// state is only reachable through Step, Missing, Forget and Restore, and a
// track holds at most one open event.
//
// Tracker is not safe for concurrent mutation; the Engine serializes cycles.
type Tracker struct {
	cfg     Config
	history *History
	tracks  map[string]*track
}

// NewTracker returns an empty tracker that seeds new events from history.
func NewTracker(cfg Config, history *History) *Tracker {
	return &Tracker{
		cfg:     cfg,
		history: history,
		tracks:  make(map[string]*track),
	}
}

// Previous returns the last sample seen for the aircraft.
func (t *Tracker) Previous(id string) (models.PositionSample, bool) {
	tr, ok := t.tracks[id]
	if !ok || !tr.hasLast {
		return models.PositionSample{}, false
	}
	return tr.last, true
}

// State returns the aircraft's state; unknown aircraft are Outside.
func (t *Tracker) State(id string) models.TrackState {
	if tr, ok := t.tracks[id]; ok {
		return tr.state
	}
	return models.StateOutside
}

// HasOpen reports whether the aircraft has an open event.
func (t *Tracker) HasOpen(id string) bool {
	tr, ok := t.tracks[id]
	return ok && tr.event != nil
}

// Buster reports the aircraft's buster flag.
func (t *Tracker) Buster(id string) bool {
	tr, ok := t.tracks[id]
	return ok && tr.buster
}

// Len returns the number of tracked aircraft.
func (t *Tracker) Len() int { return len(t.tracks) }

// OpenCount returns the number of aircraft with an open event.
func (t *Tracker) OpenCount() int {
	n := 0
	for _, tr := range t.tracks {
		if tr.event != nil {
			n++
		}
	}
	return n
}

// IDs returns every tracked aircraft identifier, sorted.
func (t *Tracker) IDs() []string {
	ids := make([]string, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Step advances one aircraft by one sample.
func (t *Tracker) Step(obs Observation) Outcome {
	a := obs.Aircraft
	tr, ok := t.tracks[a.ID]
	if !ok {
		tr = &track{id: a.ID, state: models.StateOutside}
		t.tracks[a.ID] = tr
	}
	tr.callsign = a.Callsign
	tr.pilotID = a.PilotID
	tr.pilotName = a.PilotName
	tr.label = obs.Label

	var out Outcome
	s := obs.Sample

	switch tr.state {
	case models.StateOutside:
		if obs.Inside || obs.Crossed {
			t.open(tr, s)
			out.Opened = tr.event.Clone()
		}

	case models.StateInside:
		t.appendSample(tr.event, s)
		if !obs.Inside {
			tr.state = models.StateExitPending
			tr.outside = 1
			if tr.outside >= t.cfg.ExitThreshold {
				out.Sealed = t.seal(tr, s, s.Timestamp)
			}
		}

	case models.StateExitPending:
		t.appendSample(tr.event, s)
		if obs.Inside {
			tr.state = models.StateInside
			tr.outside = 0
			break
		}
		tr.outside++
		if tr.outside >= t.cfg.ExitThreshold {
			out.Sealed = t.seal(tr, s, s.Timestamp)
		}
	}

	tr.last = s
	tr.hasLast = true
	return out
}

// Missing advances an aircraft that was absent from the snapshot taken at
// ts. An open event counts the cycle as an outside sample without storing a
// position; its exit telemetry is the last known sample. An aircraft
// without an open event is dropped.
func (t *Tracker) Missing(id string, ts time.Time) Outcome {
	tr, ok := t.tracks[id]
	if !ok {
		return Outcome{}
	}
	if tr.event == nil {
		delete(t.tracks, id)
		return Outcome{}
	}

	var out Outcome
	switch tr.state {
	case models.StateInside:
		tr.state = models.StateExitPending
		tr.outside = 1
	case models.StateExitPending:
		tr.outside++
	}
	if tr.outside >= t.cfg.ExitThreshold {
		out.Sealed = t.seal(tr, tr.last, ts)
		delete(t.tracks, id)
	}
	return out
}

// Forget drops an aircraft that left the monitoring radius. Aircraft with
// an open event are kept and Forget returns false.
func (t *Tracker) Forget(id string) bool {
	tr, ok := t.tracks[id]
	if !ok {
		return true
	}
	if tr.event != nil {
		return false
	}
	delete(t.tracks, id)
	return true
}

func (t *Tracker) open(tr *track, s models.PositionSample) {
	ev := &models.IntrusionEvent{
		ID:         models.EventID(tr.id, s.Timestamp),
		AircraftID: tr.id,
		PilotID:    tr.pilotID,
		PilotName:  tr.pilotName,
		Callsign:   tr.callsign,
		Zone:       string(t.cfg.TargetZone),
		EntryTime:  s.Timestamp,
		Entry:      s,
		Positions:  make([]models.PositionSample, 0, t.cfg.PreEntrySamples+t.cfg.ExitThreshold+8),
	}
	if t.history != nil {
		for _, p := range t.history.Lookback(tr.id, t.cfg.PreEntrySamples, s.Timestamp) {
			t.appendSample(ev, p)
		}
	}
	t.appendSample(ev, s)

	tr.event = ev
	tr.state = models.StateInside
	tr.outside = 0
	tr.buster = true
}

func (t *Tracker) seal(tr *track, exit models.PositionSample, at time.Time) *models.IntrusionEvent {
	ev := tr.event
	exitTime := at
	ev.ExitTime = &exitTime
	x := exit
	ev.Exit = &x

	tr.event = nil
	tr.state = models.StateOutside
	tr.outside = 0
	tr.buster = false
	return ev
}

// appendSample stores s unless it is out of order, closer than MinSpacing
// to the previous stored sample, or the list is full.
func (t *Tracker) appendSample(ev *models.IntrusionEvent, s models.PositionSample) bool {
	return appendPosition(ev, s, t.cfg.MinSpacing, t.cfg.MaxPositions)
}

func appendPosition(ev *models.IntrusionEvent, s models.PositionSample, spacing time.Duration, maxPositions int) bool {
	if n := len(ev.Positions); n > 0 {
		last := ev.Positions[n-1].Timestamp
		if s.Timestamp.Before(last) || s.Timestamp.Sub(last) < spacing {
			return false
		}
		// Equal timestamps with zero spacing would still duplicate a sample.
		if s.Timestamp.Equal(last) {
			return false
		}
	}
	if len(ev.Positions) >= maxPositions {
		ev.Capped = true
		return false
	}
	ev.Positions = append(ev.Positions, s)
	return true
}

// Live returns the "currently inside" table, sorted by aircraft.
func (t *Tracker) Live() []models.LiveEntry {
	out := make([]models.LiveEntry, 0)
	for _, id := range t.IDs() {
		tr := t.tracks[id]
		if tr.event == nil {
			continue
		}
		out = append(out, models.LiveEntry{
			AircraftID:         tr.id,
			Callsign:           tr.callsign,
			PilotID:            tr.pilotID,
			PilotName:          tr.pilotName,
			State:              tr.state,
			ConsecutiveOutside: tr.outside,
			Buster:             tr.buster,
			LastPosition:       tr.last,
			Event:              tr.event.Clone(),
		})
	}
	return out
}

// Restore replaces all tracks with a previously saved live table. Entries
// without an open event are ignored.
func (t *Tracker) Restore(entries []models.LiveEntry) int {
	t.tracks = make(map[string]*track, len(entries))
	for _, e := range entries {
		if e.Event == nil || !e.Event.Open() || e.AircraftID == "" {
			continue
		}
		state := e.State
		if state != models.StateInside && state != models.StateExitPending {
			state = models.StateInside
		}
		t.tracks[e.AircraftID] = &track{
			id:        e.AircraftID,
			callsign:  e.Callsign,
			pilotID:   e.PilotID,
			pilotName: e.PilotName,
			state:     state,
			outside:   e.ConsecutiveOutside,
			buster:    true,
			last:      e.LastPosition,
			hasLast:   !e.LastPosition.Timestamp.IsZero(),
			event:     e.Event.Clone(),
		}
	}
	return len(t.tracks)
}

// Labels returns the display label of every tracked aircraft from its
// latest Step.
func (t *Tracker) Labels() map[string]geo.Label {
	out := make(map[string]geo.Label, len(t.tracks))
	for id, tr := range t.tracks {
		out[id] = tr.label
	}
	return out
}

// CheckInvariants verifies that state and events agree for every track and
// that every open event's positions are ordered, spaced and capped.
func (t *Tracker) CheckInvariants() error {
	var errs []error
	for id, tr := range t.tracks {
		switch {
		case tr.state == models.StateOutside && tr.event != nil:
			errs = append(errs, fmt.Errorf("%s: outside with open event %s", id, tr.event.ID))
		case tr.state != models.StateOutside && tr.event == nil:
			errs = append(errs, fmt.Errorf("%s: %s without an open event", id, tr.state))
		case tr.buster != (tr.event != nil):
			errs = append(errs, fmt.Errorf("%s: buster=%v with open event=%v", id, tr.buster, tr.event != nil))
		}
		if tr.event == nil {
			continue
		}
		if tr.event.AircraftID != id {
			errs = append(errs, fmt.Errorf("%s: event %s belongs to %s", id, tr.event.ID, tr.event.AircraftID))
		}
		if !tr.event.Open() {
			errs = append(errs, fmt.Errorf("%s: tracked event %s is sealed", id, tr.event.ID))
		}
		if err := checkPositions(tr.event, t.cfg.MinSpacing, t.cfg.MaxPositions); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvariantViolation, errors.Join(errs...))
}

func checkPositions(ev *models.IntrusionEvent, spacing time.Duration, maxPositions int) error {
	if len(ev.Positions) > maxPositions {
		return fmt.Errorf("event %s holds %d positions, cap %d", ev.ID, len(ev.Positions), maxPositions)
	}
	for i := 1; i < len(ev.Positions); i++ {
		gap := ev.Positions[i].Timestamp.Sub(ev.Positions[i-1].Timestamp)
		if gap < 0 {
			return fmt.Errorf("event %s positions out of order at %d", ev.ID, i)
		}
		if gap < spacing {
			return fmt.Errorf("event %s positions %d and %d are %v apart, minimum %v", ev.ID, i-1, i, gap, spacing)
		}
	}
	return nil
}
