// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package audit

import (
	"time"

	"github.com/goccy/go-json"
)

// EventType names the audited action.
type EventType string

const (
	EventTypeClear       EventType = "admin.clear"
	EventTypeAuditViewed EventType = "admin.audit_viewed"
)

// Severity ranks events for log routing.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Outcome is how the action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailure Outcome = "failure"
)

// Source identifies the caller.
type Source struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Event is one audited action.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Source      Source          `json:"source"`
	RequestID   string          `json:"request_id,omitempty"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// QueryFilter narrows Query results. Zero fields match everything.
type QueryFilter struct {
	Types    []EventType
	Outcomes []Outcome
	Since    time.Time
	// Limit caps the result; 0 means no cap.
	Limit int
}

func (f *QueryFilter) matches(e *Event) bool {
	if len(f.Types) > 0 && !contains(f.Types, e.Type) {
		return false
	}
	if len(f.Outcomes) > 0 && !contains(f.Outcomes, e.Outcome) {
		return false
	}
	return f.Since.IsZero() || !e.Timestamp.Before(f.Since)
}

func contains[T comparable](xs []T, x T) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
