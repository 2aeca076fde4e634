// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/models"
)

// SQLiteStore keeps events in a single SQLite file. Each event row carries
// the full JSON document plus the columns needed for ordering and lookup.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// OpenSQLite opens or creates a database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("Event store opened (sqlite)")
	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		aircraft_id TEXT NOT NULL,
		pilot_id TEXT NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_time INTEGER,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_entry_time ON events(entry_time);
	CREATE INDEX IF NOT EXISTS idx_events_aircraft ON events(aircraft_id, entry_time);

	CREATE TABLE IF NOT EXISTS live (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Commit(ctx context.Context, ev *models.IntrusionEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	var exit sql.NullInt64
	if ev.ExitTime != nil {
		exit = sql.NullInt64{Int64: ev.ExitTime.UnixNano(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, aircraft_id, pilot_id, entry_time, exit_time, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			aircraft_id = excluded.aircraft_id,
			pilot_id = excluded.pilot_id,
			entry_time = excluded.entry_time,
			exit_time = excluded.exit_time,
			payload = excluded.payload`,
		ev.ID, ev.AircraftID, ev.PilotID, ev.EntryTime.UnixNano(), exit, string(data))
	if err != nil {
		return fmt.Errorf("commit event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, limit int) ([]*models.IntrusionEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	q := "SELECT payload FROM events ORDER BY entry_time DESC, id ASC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*models.IntrusionEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev models.IntrusionEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			logging.Warn().Err(err).Msg("Skipping unreadable event")
			continue
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.IntrusionEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM events WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	var ev models.IntrusionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

func (s *SQLiteStore) LastForAircraft(ctx context.Context, aircraftID string) (*models.IntrusionEvent, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM events WHERE aircraft_id = ? ORDER BY entry_time DESC LIMIT 1",
		aircraftID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last event for %s: %w", aircraftID, err)
	}
	var ev models.IntrusionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM events")
	if err != nil {
		return 0, fmt.Errorf("clear events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) SaveLive(ctx context.Context, entries []models.LiveEntry) error {
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
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO live (id, payload) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET payload = excluded.payload",
		string(data))
	if err != nil {
		return fmt.Errorf("save live table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadLive(ctx context.Context) ([]models.LiveEntry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM live WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load live table: %w", err)
	}
	var entries []models.LiveEntry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, fmt.Errorf("decode live table: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
