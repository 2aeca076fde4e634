// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestEventID(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	if got, want := EventID("1234567", at), "1234567-1792238400000"; got != want {
		t.Errorf("EventID = %q, want %q", got, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	exit := now.Add(time.Minute)
	orig := &IntrusionEvent{
		ID:        "x",
		EntryTime: now,
		ExitTime:  &exit,
		Exit:      &PositionSample{Lat: 1},
		Positions: []PositionSample{{Lat: 1, Timestamp: now}},
	}
	c := orig.Clone()
	c.Positions[0].Lat = 99
	*c.ExitTime = now
	c.Exit.Lat = 42

	if orig.Positions[0].Lat != 1 {
		t.Error("Clone shares Positions")
	}
	if !orig.ExitTime.Equal(exit) {
		t.Error("Clone shares ExitTime")
	}
	if orig.Exit.Lat != 1 {
		t.Error("Clone shares Exit")
	}
	if (*IntrusionEvent)(nil).Clone() != nil {
		t.Error("nil Clone should be nil")
	}
}

func TestOpenEventOmitsExit(t *testing.T) {
	t.Parallel()
	ev := &IntrusionEvent{ID: "x", EntryTime: time.Unix(0, 0).UTC()}
	if !ev.Open() {
		t.Fatal("event without exit time should be open")
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["exit_time"]; ok {
		t.Error("open event should omit exit_time")
	}
}
