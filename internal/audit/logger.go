// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/p56watch/internal/logging"
)

const writeTimeout = 5 * time.Second

// Logger queues events and writes them to a Store from Serve.
type Logger struct {
	store  Store
	events chan *Event
	now    func() time.Time
}

// NewLogger returns a Logger with a queue of bufferSize (default 256).
func NewLogger(store Store, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Logger{
		store:  store,
		events: make(chan *Event, bufferSize),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Log stamps event and queues it. A full queue drops the event with a
// warning; audit never slows a request.
func (l *Logger) Log(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	select {
	case l.events <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit queue full, dropping event")
	}
}

// LogClear records one clear attempt.
func (l *Logger) LogClear(source Source, requestID string, outcome Outcome, cleared int, err error) {
	ev := &Event{
		Type:      EventTypeClear,
		Outcome:   outcome,
		Source:    source,
		RequestID: requestID,
	}
	switch outcome {
	case OutcomeSuccess:
		ev.Description = "event log cleared"
		ev.Metadata = mustJSON(map[string]int{"cleared": cleared})
	case OutcomeDenied:
		ev.Severity = SeverityWarning
		ev.Description = "clear rejected: missing or invalid admin token"
	default:
		ev.Severity = SeverityError
		ev.Description = "clear failed"
		if err != nil {
			ev.Metadata = mustJSON(map[string]string{"error": err.Error()})
		}
	}
	l.Log(ev)
}

// Query reads from the underlying store.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Serve writes queued events until ctx ends, then drains what is left.
func (l *Logger) Serve(ctx context.Context) error {
	for {
		select {
		case ev := <-l.events:
			l.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-l.events:
					l.write(ev)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (l *Logger) String() string { return "audit-log" }

func (l *Logger) write(ev *Event) {
	logEvent(ev)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := l.store.Save(ctx, ev); err != nil {
		logging.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to save audit event")
	}
}

// logEvent mirrors every event into the structured log.
func logEvent(ev *Event) {
	e := logging.Info()
	switch ev.Severity {
	case SeverityWarning:
		e = logging.Warn()
	case SeverityError:
		e = logging.Error()
	}
	e = e.Str("audit_id", ev.ID).
		Str("type", string(ev.Type)).
		Str("outcome", string(ev.Outcome)).
		Str("ip", ev.Source.IP).
		Str("request_id", ev.RequestID)
	if len(ev.Metadata) > 0 {
		e = e.RawJSON("metadata", ev.Metadata)
	}
	e.Msg(ev.Description)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
