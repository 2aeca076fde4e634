// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCycle(t *testing.T) {
	okBefore := testutil.ToFloat64(CyclesTotal.WithLabelValues("ok"))
	skipBefore := testutil.ToFloat64(CyclesTotal.WithLabelValues("skipped"))

	RecordCycle(20*time.Millisecond, false)
	RecordCycle(5*time.Millisecond, true)

	if got := testutil.ToFloat64(CyclesTotal.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("ok cycles delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CyclesTotal.WithLabelValues("skipped")) - skipBefore; got != 1 {
		t.Errorf("skipped cycles delta = %v, want 1", got)
	}
	if testutil.ToFloat64(LastCycleTimestamp) == 0 {
		t.Error("LastCycleTimestamp not set after a successful cycle")
	}
}

func TestRecordSeal(t *testing.T) {
	newBefore := testutil.ToFloat64(IncursionsSealed.WithLabelValues("new"))
	mergedBefore := testutil.ToFloat64(IncursionsSealed.WithLabelValues("merged"))

	RecordSeal(false)
	RecordSeal(true)
	RecordSeal(true)

	if got := testutil.ToFloat64(IncursionsSealed.WithLabelValues("new")) - newBefore; got != 1 {
		t.Errorf("new delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(IncursionsSealed.WithLabelValues("merged")) - mergedBefore; got != 2 {
		t.Errorf("merged delta = %v, want 2", got)
	}
}

func TestSetZoneCounts(t *testing.T) {
	labels := []string{"P56", "FRZ", "SFRA", "Vicinity", "Ground"}
	SetZoneCounts(labels, map[string]int{"P56": 2, "Vicinity": 40})
	SetZoneCounts(labels, map[string]int{"FRZ": 1})

	if got := testutil.ToFloat64(AircraftByZone.WithLabelValues("P56")); got != 0 {
		t.Errorf("P56 = %v, want reset to 0", got)
	}
	if got := testutil.ToFloat64(AircraftByZone.WithLabelValues("FRZ")); got != 1 {
		t.Errorf("FRZ = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/live", "200"))
	RecordAPIRequest("GET", "/api/v1/live", "200", time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/live", "200")) - before; got != 1 {
		t.Errorf("request delta = %v, want 1", got)
	}
}
