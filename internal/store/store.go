// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package store persists sealed intrusion events and the live
// "currently inside" table.
//
// Three backends implement EventStore: Badger (default), SQLite and an
// in-memory store for tests and ephemeral runs. All of them upsert events by
// ID, so re-committing a merged event replaces the earlier version, and all
// of them replace the live table in a single transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/p56watch/internal/models"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrNotFound is returned by Get for an unknown event ID.
	ErrNotFound = errors.New("event not found")
)

// EventStore is the durable log of sealed events plus the live table.
type EventStore interface {
	// Commit inserts or replaces ev by ID.
	Commit(ctx context.Context, ev *models.IntrusionEvent) error
	// Query returns up to limit events, most recent entry first. limit <= 0
	// means no limit.
	Query(ctx context.Context, limit int) ([]*models.IntrusionEvent, error)
	// Get returns the event with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*models.IntrusionEvent, error)
	// LastForAircraft returns the most recently entered event for the
	// aircraft, or nil when there is none.
	LastForAircraft(ctx context.Context, aircraftID string) (*models.IntrusionEvent, error)
	// Clear removes every event and returns how many were removed.
	Clear(ctx context.Context) (int, error)
	// SaveLive atomically replaces the live table.
	SaveLive(ctx context.Context, entries []models.LiveEntry) error
	// LoadLive returns the last saved live table.
	LoadLive(ctx context.Context) ([]models.LiveEntry, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Path       string
	SyncWrites bool
}

// Open returns the backend named by cfg.Backend.
func Open(cfg Config) (EventStore, error) {
	switch cfg.Backend {
	case "badger":
		return OpenBadger(cfg.Path, cfg.SyncWrites)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// SortRecentFirst orders by entry time descending, then ID for stability.
func SortRecentFirst(evs []*models.IntrusionEvent) {
	sort.Slice(evs, func(i, j int) bool { return RecentFirst(evs[i], evs[j]) })
}

// RecentFirst reports whether a is listed before b in query order.
func RecentFirst(a, b *models.IntrusionEvent) bool {
	if !a.EntryTime.Equal(b.EntryTime) {
		return a.EntryTime.After(b.EntryTime)
	}
	return a.ID < b.ID
}

// Leaderboard groups events by pilot. Entries are ordered by event count,
// ties broken by the most recent event first, then by pilot ID.
func Leaderboard(events []*models.IntrusionEvent) []models.LeaderboardEntry {
	t := NewTally()
	for _, ev := range events {
		t.Add(ev)
	}
	return t.Entries()
}

// Tally is a running leaderboard. Its size grows with the number of pilots,
// not events. Callers add each event once; a merged re-commit of an event
// already added must not be added again.
type Tally struct {
	pilots map[string]*pilotTally
}

type pilotTally struct {
	entry     models.LeaderboardEntry
	callsigns map[string]struct{}
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{pilots: make(map[string]*pilotTally)}
}

// Add counts one event.
func (t *Tally) Add(ev *models.IntrusionEvent) {
	p, ok := t.pilots[ev.PilotID]
	if !ok {
		p = &pilotTally{
			entry: models.LeaderboardEntry{
				PilotID:    ev.PilotID,
				FirstEvent: ev.EntryTime,
				LastEvent:  ev.EntryTime,
			},
			callsigns: make(map[string]struct{}),
		}
		t.pilots[ev.PilotID] = p
	}
	p.entry.Count++
	if ev.Callsign != "" {
		p.callsigns[ev.Callsign] = struct{}{}
	}
	if ev.EntryTime.Before(p.entry.FirstEvent) {
		p.entry.FirstEvent = ev.EntryTime
	}
	if !ev.EntryTime.Before(p.entry.LastEvent) {
		p.entry.LastEvent = ev.EntryTime
		p.entry.PilotName = ev.PilotName
	}
}

// Len returns the number of pilots.
func (t *Tally) Len() int { return len(t.pilots) }

// Entries returns a freshly allocated, ordered leaderboard.
func (t *Tally) Entries() []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, 0, len(t.pilots))
	for _, p := range t.pilots {
		e := p.entry
		e.Callsigns = make([]string, 0, len(p.callsigns))
		for cs := range p.callsigns {
			e.Callsigns = append(e.Callsigns, cs)
		}
		sort.Strings(e.Callsigns)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if !out[i].LastEvent.Equal(out[j].LastEvent) {
			return out[i].LastEvent.After(out[j].LastEvent)
		}
		return out[i].PilotID < out[j].PilotID
	})
	return out
}

func entryKeyTime(t time.Time) string {
	// Zero-padded so lexical order equals time order for post-1970 times.
	return fmt.Sprintf("%020d", t.UnixNano())
}
