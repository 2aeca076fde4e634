// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycle
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "p56watch_cycle_duration_seconds",
			Help:    "Duration of a full poll-classify-persist cycle",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p56watch_cycles_total",
			Help: "Poll cycles by outcome",
		},
		[]string{"outcome"}, // "ok", "skipped"
	)

	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p56watch_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed cycle",
		},
	)

	// Feed
	FeedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p56watch_feed_errors_total",
			Help: "Feed fetch or decode failures by reason",
		},
		[]string{"reason"}, // "unavailable", "decode", "stale", "no_snapshot", "circuit_open"
	)

	FeedRecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p56watch_feed_records_skipped_total",
			Help: "Individual aircraft records rejected at the ingestion boundary",
		},
	)

	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "p56watch_feed_fetch_duration_seconds",
			Help:    "Time spent fetching and decoding one snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tracking
	AircraftTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p56watch_aircraft_tracked",
			Help: "Aircraft within the monitoring radius in the last cycle",
		},
	)

	AircraftByZone = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "p56watch_aircraft_by_zone",
			Help: "Aircraft per display label in the last cycle",
		},
		[]string{"zone"},
	)

	OpenIncursions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p56watch_open_incursions",
			Help: "Aircraft currently Inside or ExitPending",
		},
	)

	IncursionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p56watch_incursions_opened_total",
			Help: "Outside to Inside transitions",
		},
	)

	IncursionsSealed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p56watch_incursions_sealed_total",
			Help: "Confirmed exits by finalization result",
		},
		[]string{"result"}, // "new", "merged"
	)

	GeometryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p56watch_geometry_errors_total",
			Help: "Containment tests that failed and fell back to Vicinity",
		},
	)

	InvariantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p56watch_invariant_violations_total",
			Help: "Tracker invariant checks that failed",
		},
	)

	// Persistence
	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p56watch_persistence_errors_total",
			Help: "Store operations that failed and will be retried",
		},
		[]string{"op"}, // "commit", "save_live", "clear"
	)

	PendingCommits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p56watch_pending_commits",
			Help: "Sealed events waiting for a successful commit",
		},
	)

	EventsCleared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p56watch_events_cleared_total",
			Help: "Events removed through the admin clear operation",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p56watch_api_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "p56watch_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p56watch_websocket_connections",
			Help: "Connected dashboard websocket clients",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p56watch_websocket_messages_dropped_total",
			Help: "Broadcasts dropped because the hub or a client buffer was full",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "p56watch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p56watch_circuit_breaker_transitions_total",
			Help: "Circuit breaker state changes",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordCycle observes one completed cycle.
func RecordCycle(duration time.Duration, skipped bool) {
	CycleDuration.Observe(duration.Seconds())
	if skipped {
		CyclesTotal.WithLabelValues("skipped").Inc()
		return
	}
	CyclesTotal.WithLabelValues("ok").Inc()
	LastCycleTimestamp.Set(float64(time.Now().Unix()))
}

// RecordFeedError counts a feed failure by reason.
func RecordFeedError(reason string) {
	FeedErrors.WithLabelValues(reason).Inc()
}

// RecordPersistenceError counts a failed store operation.
func RecordPersistenceError(op string) {
	PersistenceErrors.WithLabelValues(op).Inc()
}

// RecordSeal counts a finalized incursion.
func RecordSeal(merged bool) {
	if merged {
		IncursionsSealed.WithLabelValues("merged").Inc()
		return
	}
	IncursionsSealed.WithLabelValues("new").Inc()
}

// SetZoneCounts replaces the per-label gauge values. Labels absent from
// counts are reset to zero.
func SetZoneCounts(labels []string, counts map[string]int) {
	for _, l := range labels {
		AircraftByZone.WithLabelValues(l).Set(float64(counts[l]))
	}
}

// RecordAPIRequest observes one HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
