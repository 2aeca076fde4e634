// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"sync"
	"time"

	"github.com/tomtom215/p56watch/internal/models"
)

// History keeps the most recent samples of every aircraft inside the
// monitoring radius, independent of intrusion state. Each ring is FIFO with
// a fixed capacity.
type History struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string][]models.PositionSample
}

// NewHistory returns an empty history with the given per-aircraft capacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		rings:    make(map[string][]models.PositionSample),
	}
}

// Record appends s to the aircraft's ring, evicting the oldest sample when
// full. Samples not newer than the latest stored one are ignored.
func (h *History) Record(id string, s models.PositionSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring := h.rings[id]
	if n := len(ring); n > 0 && !s.Timestamp.After(ring[n-1].Timestamp) {
		return
	}
	if len(ring) == h.capacity {
		copy(ring, ring[1:])
		ring[len(ring)-1] = s
	} else {
		ring = append(ring, s)
	}
	h.rings[id] = ring
}

// Lookback returns up to n of the aircraft's most recent samples taken
// strictly before the given time, oldest first.
func (h *History) Lookback(id string, n int, before time.Time) []models.PositionSample {
	if n <= 0 {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	ring := h.rings[id]
	end := len(ring)
	for end > 0 && !ring[end-1].Timestamp.Before(before) {
		end--
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	if start == end {
		return nil
	}
	return append([]models.PositionSample(nil), ring[start:end]...)
}

// Forget drops an aircraft's ring.
func (h *History) Forget(id string) {
	h.mu.Lock()
	delete(h.rings, id)
	h.mu.Unlock()
}

// Prune drops every ring whose aircraft is not in keep and returns how many
// were removed.
func (h *History) Prune(keep map[string]struct{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id := range h.rings {
		if _, ok := keep[id]; !ok {
			delete(h.rings, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of aircraft with a ring.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rings)
}
