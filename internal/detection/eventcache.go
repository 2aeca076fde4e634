// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"sort"

	"github.com/tomtom215/p56watch/internal/models"
	"github.com/tomtom215/p56watch/internal/store"
)

// eventCache holds the newest sealed events and a running leaderboard so a
// cycle can publish its view without reading the event log. It is filled
// from the log once and then kept current as events are finalized.
//
// Not safe for concurrent use; the Engine calls it under the cycle lock.
type eventCache struct {
	limit  int
	recent []*models.IntrusionEvent
	tally  *store.Tally
	board  []models.LeaderboardEntry
}

func newEventCache(limit int) *eventCache {
	return &eventCache{
		limit:  limit,
		recent: []*models.IntrusionEvent{},
		tally:  store.NewTally(),
	}
}

// reset replaces the cache with the given event log.
func (c *eventCache) reset(events []*models.IntrusionEvent) {
	c.tally = store.NewTally()
	recent := make([]*models.IntrusionEvent, 0, len(events))
	for _, ev := range events {
		c.tally.Add(ev)
		recent = append(recent, ev.Clone())
	}
	store.SortRecentFirst(recent)
	if len(recent) > c.limit {
		recent = recent[:c.limit:c.limit]
	}
	c.recent = recent
	c.board = nil
}

// add records a finalized event. counted is false when ev replaces a
// version already in the tally, as a merged re-entry does.
func (c *eventCache) add(ev *models.IntrusionEvent, counted bool) {
	if counted {
		c.tally.Add(ev)
		c.board = nil
	}
	ev = ev.Clone()

	recent := make([]*models.IntrusionEvent, 0, len(c.recent)+1)
	for _, old := range c.recent {
		if old.ID != ev.ID {
			recent = append(recent, old)
		}
	}
	i := sort.Search(len(recent), func(i int) bool { return store.RecentFirst(ev, recent[i]) })
	if i >= c.limit {
		c.recent = recent
		return
	}
	recent = append(recent, nil)
	copy(recent[i+1:], recent[i:])
	recent[i] = ev
	if len(recent) > c.limit {
		recent = recent[:c.limit]
	}
	c.recent = recent
}

// events returns the cached events, newest entry first. The slice is
// shared with published views and never modified afterwards.
func (c *eventCache) events() []*models.IntrusionEvent {
	return c.recent
}

func (c *eventCache) leaderboard() []models.LeaderboardEntry {
	if c.board == nil {
		c.board = c.tally.Entries()
	}
	return c.board
}
