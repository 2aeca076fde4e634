// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package store

import (
	"context"
	"sync"

	"github.com/tomtom215/p56watch/internal/models"
)

// Memory is an EventStore that keeps everything in process memory. Values
// are cloned on the way in and out.
type Memory struct {
	mu     sync.RWMutex
	events map[string]*models.IntrusionEvent
	live   []models.LiveEntry
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]*models.IntrusionEvent)}
}

func (m *Memory) Commit(_ context.Context, ev *models.IntrusionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.events[ev.ID] = ev.Clone()
	return nil
}

func (m *Memory) Query(_ context.Context, limit int) ([]*models.IntrusionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]*models.IntrusionEvent, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Clone())
	}
	SortRecentFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.IntrusionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ev.Clone(), nil
}

func (m *Memory) LastForAircraft(_ context.Context, aircraftID string) (*models.IntrusionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var last *models.IntrusionEvent
	for _, ev := range m.events {
		if ev.AircraftID != aircraftID {
			continue
		}
		if last == nil || ev.EntryTime.After(last.EntryTime) {
			last = ev
		}
	}
	return last.Clone(), nil
}

func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	n := len(m.events)
	m.events = make(map[string]*models.IntrusionEvent)
	return n, nil
}

func (m *Memory) SaveLive(_ context.Context, entries []models.LiveEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.live = cloneLive(entries)
	return nil
}

func (m *Memory) LoadLive(_ context.Context) ([]models.LiveEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return cloneLive(m.live), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneLive(entries []models.LiveEntry) []models.LiveEntry {
	out := make([]models.LiveEntry, len(entries))
	for i, e := range entries {
		e.Event = e.Event.Clone()
		out[i] = e
	}
	return out
}
