// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/models"
)

// Key layout:
//
//	event:<id>           JSON IntrusionEvent
//	entry:<nanos>:<id>   empty; ordered index by entry time
//	aircraft:<id>        event ID of the aircraft's latest entry
//	live                 JSON []LiveEntry
const (
	prefixEvent    = "event:"
	prefixEntry    = "entry:"
	prefixAircraft = "aircraft:"
	keyLive        = "live"

	gcInterval = 10 * time.Minute
	gcRatio    = 0.5
)

// BadgerStore is the default EventStore.
type BadgerStore struct {
	db     *badger.DB
	path   string
	closed atomic.Bool
}

// OpenBadger opens or creates a store at path. An empty path opens an
// in-memory Badger instance.
func OpenBadger(path string, syncWrites bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.SyncWrites = syncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", path).Bool("sync_writes", syncWrites).Msg("Event store opened")
	return &BadgerStore{db: db, path: path}, nil
}

func eventKey(id string) []byte { return []byte(prefixEvent + id) }

func entryKey(ev *models.IntrusionEvent) []byte {
	return []byte(prefixEntry + entryKeyTime(ev.EntryTime) + ":" + ev.ID)
}

func aircraftKey(id string) []byte { return []byte(prefixAircraft + id) }

func getEvent(txn *badger.Txn, id string) (*models.IntrusionEvent, error) {
	item, err := txn.Get(eventKey(id))
	if err != nil {
		return nil, err
	}
	var ev models.IntrusionEvent
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ev)
	}); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", id, err)
	}
	return &ev, nil
}

func (s *BadgerStore) Commit(_ context.Context, ev *models.IntrusionEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		prev, err := getEvent(txn, ev.ID)
		switch {
		case err == nil:
			if !prev.EntryTime.Equal(ev.EntryTime) {
				if err := txn.Delete(entryKey(prev)); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(eventKey(ev.ID), data); err != nil {
			return err
		}
		if err := txn.Set(entryKey(ev), nil); err != nil {
			return err
		}
		return s.updateAircraftPointer(txn, ev)
	})
	if err != nil {
		return fmt.Errorf("commit event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *BadgerStore) updateAircraftPointer(txn *badger.Txn, ev *models.IntrusionEvent) error {
	key := aircraftKey(ev.AircraftID)
	item, err := txn.Get(key)
	if err == nil {
		cur, verr := item.ValueCopy(nil)
		if verr != nil {
			return verr
		}
		if string(cur) != ev.ID {
			latest, gerr := getEvent(txn, string(cur))
			if gerr == nil && latest.EntryTime.After(ev.EntryTime) {
				return nil
			}
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Set(key, []byte(ev.ID))
}

func (s *BadgerStore) Query(ctx context.Context, limit int) ([]*models.IntrusionEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []*models.IntrusionEvent

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(append([]byte(prefixEntry), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			// entry:<20 digits>:<id>
			id := key[len(prefixEntry)+21:]
			ev, err := getEvent(txn, id)
			if err != nil {
				logging.Warn().Err(err).Str("key", key).Msg("Skipping unreadable event")
				continue
			}
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	SortRecentFirst(out)
	return out, nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*models.IntrusionEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var ev *models.IntrusionEvent
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ev, err = getEvent(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

func (s *BadgerStore) LastForAircraft(_ context.Context, aircraftID string) (*models.IntrusionEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var ev *models.IntrusionEvent
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(aircraftKey(aircraftID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ev, err = getEvent(txn, string(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			ev = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("last event for %s: %w", aircraftID, err)
	}
	return ev, nil
}

func (s *BadgerStore) Clear(_ context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(prefixEvent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.db.DropPrefix([]byte(prefixEvent), []byte(prefixEntry), []byte(prefixAircraft)); err != nil {
		return 0, fmt.Errorf("drop events: %w", err)
	}
	return n, nil
}

func (s *BadgerStore) SaveLive(_ context.Context, entries []models.LiveEntry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if entries == nil {
		entries = []models.LiveEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal live table: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyLive), data)
	}); err != nil {
		return fmt.Errorf("save live table: %w", err)
	}
	return nil
}

func (s *BadgerStore) LoadLive(_ context.Context) ([]models.LiveEntry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var entries []models.LiveEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLive))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load live table: %w", err)
	}
	return entries, nil
}

// Serve runs value-log garbage collection until ctx is done. It satisfies
// suture.Service so the store can sit in the data layer of the supervisor.
func (s *BadgerStore) Serve(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for s.db.RunValueLogGC(gcRatio) == nil {
			}
		}
	}
}

func (s *BadgerStore) String() string { return "badger-store" }

func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
