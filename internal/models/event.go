// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package models

import (
	"strconv"
	"time"
)

// TrackState is the intrusion state of one tracked aircraft.
type TrackState string

const (
	StateOutside     TrackState = "outside"
	StateInside      TrackState = "inside"
	StateExitPending TrackState = "exit_pending"
)

// IntrusionEvent is one logical incursion into the target zone.
//
// An event is opened on a confirmed entry, grows while the aircraft remains
// inside or pending exit, and is sealed when the exit is confirmed. After
// sealing it only changes when a rapid re-entry is merged into it.
//
// Positions hold pre-entry context, the in-zone track and the post-exit
// samples that confirmed the exit, in non-decreasing time order.
//
// Example:
//
//	{
//	  "id": "1234567-1792238400000",
//	  "aircraft_id": "1234567",
//	  "pilot_id": "1234567",
//	  "callsign": "N123AB",
//	  "zone": "P56",
//	  "entry_time": "2026-10-17T12:00:00Z",
//	  "exit_time": "2026-10-17T12:03:00Z",
//	  "positions": [...]
//	}
type IntrusionEvent struct {
	ID         string     `json:"id"`
	AircraftID string     `json:"aircraft_id"`
	PilotID    string     `json:"pilot_id"`
	PilotName  string     `json:"pilot_name"`
	Callsign   string     `json:"callsign"`
	Zone       string     `json:"zone"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`

	Entry PositionSample  `json:"entry"`
	Exit  *PositionSample `json:"exit,omitempty"`

	Positions []PositionSample `json:"positions"`
	// Capped is set once a sample was dropped because Positions was full.
	Capped bool `json:"capped,omitempty"`
	// Merges counts re-entries folded into this event.
	Merges int `json:"merges,omitempty"`
}

// EventID derives the event identifier from the aircraft and entry time.
func EventID(aircraftID string, entry time.Time) string {
	return aircraftID + "-" + strconv.FormatInt(entry.UnixMilli(), 10)
}

// Open reports whether the event has not been sealed.
func (e *IntrusionEvent) Open() bool {
	return e.ExitTime == nil
}

// Clone returns a deep copy.
func (e *IntrusionEvent) Clone() *IntrusionEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Positions = append([]PositionSample(nil), e.Positions...)
	if e.ExitTime != nil {
		t := *e.ExitTime
		c.ExitTime = &t
	}
	if e.Exit != nil {
		x := *e.Exit
		c.Exit = &x
	}
	return &c
}

// LastTimestamp returns the time of the newest stored position, or the
// zero time when there is none.
func (e *IntrusionEvent) LastTimestamp() time.Time {
	if len(e.Positions) == 0 {
		return time.Time{}
	}
	return e.Positions[len(e.Positions)-1].Timestamp
}

// LiveEntry is one row of the "currently inside" table: an aircraft with an
// open event. The table is persisted every cycle and reloaded on restart.
type LiveEntry struct {
	AircraftID         string          `json:"aircraft_id"`
	Callsign           string          `json:"callsign"`
	PilotID            string          `json:"pilot_id"`
	PilotName          string          `json:"pilot_name"`
	State              TrackState      `json:"state"`
	ConsecutiveOutside int             `json:"consecutive_outside"`
	Buster             bool            `json:"buster"`
	LastPosition       PositionSample  `json:"last_position"`
	Event              *IntrusionEvent `json:"event"`

	// Pending marks a sealed event that has not reached the event log yet.
	// Pending rows are saved with the table so a restart can retry the
	// commit; they are never shown as live.
	Pending bool `json:"pending,omitempty"`
	// FirstCommit is set on pending rows when no earlier version of the
	// event was committed.
	FirstCommit bool `json:"first_commit,omitempty"`
}

// LeaderboardEntry aggregates sealed events per pilot.
type LeaderboardEntry struct {
	PilotID    string    `json:"pilot_id"`
	PilotName  string    `json:"pilot_name"`
	Count      int       `json:"count"`
	Callsigns  []string  `json:"callsigns"`
	FirstEvent time.Time `json:"first_event"`
	LastEvent  time.Time `json:"last_event"`
}
