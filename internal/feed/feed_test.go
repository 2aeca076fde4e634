// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func feedDoc(ts time.Time, pilots ...string) []byte {
	body := ""
	for i, p := range pilots {
		if i > 0 {
			body += ","
		}
		body += p
	}
	return []byte(fmt.Sprintf(`{"general":{"update_timestamp":%q},"pilots":[%s]}`, ts.Format(time.RFC3339Nano), body))
}

const goodPilot = `{
	"cid": 1234567, "name": "Jane Doe", "callsign": "n123ab",
	"latitude": 38.8977, "longitude": -77.0365, "altitude": 1500,
	"groundspeed": 110, "heading": 270, "transponder": "1200",
	"flight_plan": {"flight_rules": "V", "aircraft_short": "C172", "departure": "KJYO", "arrival": "KCGS"},
	"last_updated": "2026-10-17T12:00:00Z"
}`

func TestDecode(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		pilot       string
		wantKept    int
		wantSkipped int
	}{
		{"valid record", goodPilot, 1, 0},
		{"missing latitude", `{"cid":1,"callsign":"AAL1","longitude":-77.0}`, 0, 1},
		{"latitude out of range", `{"cid":1,"callsign":"AAL1","latitude":91,"longitude":-77.0}`, 0, 1},
		{"zero cid", `{"cid":0,"callsign":"AAL1","latitude":38,"longitude":-77}`, 0, 1},
		{"bad callsign", `{"cid":1,"callsign":"A B","latitude":38,"longitude":-77}`, 0, 1},
		{"bad squawk", `{"cid":1,"callsign":"AAL1","latitude":38,"longitude":-77,"transponder":"7800"}`, 0, 1},
		{"wrong type", `{"cid":"abc","callsign":"AAL1","latitude":38,"longitude":-77}`, 0, 1},
		{"zero coordinates are present", `{"cid":1,"callsign":"AAL1","latitude":0,"longitude":0}`, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			snap, err := Decode(feedDoc(ts, tt.pilot))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(snap.Aircraft) != tt.wantKept || snap.Skipped != tt.wantSkipped {
				t.Errorf("kept=%d skipped=%d, want %d/%d", len(snap.Aircraft), snap.Skipped, tt.wantKept, tt.wantSkipped)
			}
		})
	}
}

func TestDecodeConvertsRecord(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	snap, err := Decode(feedDoc(ts, goodPilot))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !snap.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", snap.Timestamp, ts)
	}
	a := snap.Aircraft[0]
	if a.ID != "1234567" || a.PilotID != "1234567" {
		t.Errorf("ids = %q/%q", a.ID, a.PilotID)
	}
	if a.Callsign != "N123AB" {
		t.Errorf("callsign = %q, want upper-cased", a.Callsign)
	}
	if a.Position.Lat != 38.8977 || a.Position.Lon != -77.0365 {
		t.Errorf("position = %+v", a.Position)
	}
	if a.FlightPlan == nil || a.FlightPlan.AircraftShort != "C172" {
		t.Errorf("flight plan = %+v", a.FlightPlan)
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	t.Parallel()
	for name, doc := range map[string]string{
		"not json":          `<html>`,
		"missing timestamp": `{"general":{},"pilots":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(doc))
			if !errors.Is(err, ErrMalformedFeed) {
				t.Errorf("err = %v, want ErrMalformedFeed", err)
			}
			if Reason(err) != "decode" {
				t.Errorf("Reason = %q, want decode", Reason(err))
			}
		})
	}
}

func TestReason(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{ErrStaleSnapshot, "stale"},
		{fmt.Errorf("wrap: %w", ErrNoSnapshot), "no_snapshot"},
		{gobreaker.ErrOpenState, "circuit_open"},
		{context.DeadlineExceeded, "timeout"},
		{ErrFeedUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if !IsNoUpdate(ErrStaleSnapshot) || IsNoUpdate(ErrFeedUnavailable) {
		t.Error("IsNoUpdate misclassifies")
	}
}

func TestHTTPSourceFetch(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int64
	var gotUA atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		n := calls.Add(1)
		// Second call repeats the first timestamp.
		ts := base
		if n >= 3 {
			ts = base.Add(15 * time.Second)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(feedDoc(ts, goodPilot))
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPConfig{URL: srv.URL, UserAgent: "p56watch-test", Timeout: 2 * time.Second})
	ctx := context.Background()

	snap, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if len(snap.Aircraft) != 1 {
		t.Fatalf("aircraft = %d, want 1", len(snap.Aircraft))
	}
	if ua, _ := gotUA.Load().(string); ua != "p56watch-test" {
		t.Errorf("User-Agent = %q", ua)
	}

	if _, err := src.Fetch(ctx); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("second Fetch err = %v, want ErrStaleSnapshot", err)
	}

	snap, err = src.Fetch(ctx)
	if err != nil {
		t.Fatalf("third Fetch: %v", err)
	}
	if !snap.Timestamp.Equal(base.Add(15 * time.Second)) {
		t.Errorf("timestamp = %v", snap.Timestamp)
	}
}

func TestHTTPSourceBreakerOpens(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPConfig{URL: srv.URL, Timeout: time.Second, BreakerTimeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := src.Fetch(ctx)
		if !errors.Is(err, ErrFeedUnavailable) {
			t.Fatalf("Fetch %d err = %v, want ErrFeedUnavailable", i, err)
		}
	}
	_, err := src.Fetch(ctx)
	if Reason(err) != "circuit_open" {
		t.Fatalf("Fetch after 5 failures err = %v, want open circuit", err)
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("server saw %d calls, want 5", got)
	}
}

func TestHTTPSourceRateLimitHonorsContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(feedDoc(time.Now().UTC()))
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPConfig{URL: srv.URL, RateLimit: 0.001})
	if _, err := src.Fetch(context.Background()); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := src.Fetch(ctx); err == nil {
		t.Fatal("expected the limiter to refuse a second fetch before the deadline")
	}
}
