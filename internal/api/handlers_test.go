// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/p56watch/internal/detection"
	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/models"
	"github.com/tomtom215/p56watch/internal/store"
)

//nolint:gochecknoinits // quiet logs for the whole package
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

var viewTime = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fakeEngine struct {
	mu       sync.Mutex
	view     *detection.View
	status   detection.Status
	cleared  int
	clearErr error
	calls    []bool
	// archive holds events that are no longer in the view.
	archive map[string]*models.IntrusionEvent
	getErr  error
}

func (f *fakeEngine) View() *detection.View    { return f.view }
func (f *fakeEngine) Status() detection.Status { return f.status }

func (f *fakeEngine) Event(_ context.Context, id string) (*models.IntrusionEvent, error) {
	for _, ev := range f.view.Events {
		if ev.ID == id {
			return ev, nil
		}
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	if ev, ok := f.archive[id]; ok {
		return ev, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeEngine) Clear(_ context.Context, authorized bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, authorized)
	if !authorized {
		return 0, detection.ErrUnauthorized
	}
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	return f.cleared, nil
}

func (f *fakeEngine) lastCall(t *testing.T) bool {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("engine Clear was not called")
	}
	return f.calls[len(f.calls)-1]
}

func sealedEvent(id, pilot string, entry time.Time) *models.IntrusionEvent {
	exit := entry.Add(2 * time.Minute)
	return &models.IntrusionEvent{
		ID:         id,
		AircraftID: pilot,
		PilotID:    pilot,
		Callsign:   "N" + pilot,
		Zone:       "P56",
		EntryTime:  entry,
		ExitTime:   &exit,
	}
}

func testView() *detection.View {
	open := &models.IntrusionEvent{ID: "300-1", AircraftID: "300", Zone: "P56", EntryTime: viewTime}
	return &detection.View{
		Cycle:       42,
		GeneratedAt: viewTime,
		Live: []models.LiveEntry{{
			AircraftID: "300",
			Callsign:   "N300",
			State:      models.StateInside,
			Event:      open,
		}},
		Aircraft: []models.AircraftView{{ID: "300", Callsign: "N300"}, {ID: "301", Callsign: "N301"}},
		Events: []*models.IntrusionEvent{
			sealedEvent("100-3", "100", viewTime.Add(-10*time.Minute)),
			sealedEvent("200-2", "200", viewTime.Add(-20*time.Minute)),
			sealedEvent("100-1", "100", viewTime.Add(-30*time.Minute)),
		},
		Leaderboard: []models.LeaderboardEntry{
			{PilotID: "100", Count: 2},
			{PilotID: "200", Count: 1},
		},
	}
}

func newTestEngine() *fakeEngine {
	return &fakeEngine{
		view:   testView(),
		status: detection.Status{Cycles: 3, LastCycleAt: viewTime},
	}
}

func newTestRouter(t *testing.T, eng Engine, cfg HandlerConfig, mwCfg *MiddlewareConfig) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(eng, nil, cfg)
	h.now = func() time.Time { return viewTime.Add(5 * time.Second) }
	if mwCfg == nil {
		mwCfg = DefaultMiddlewareConfig()
		mwCfg.RateLimitDisabled = true
	}
	return NewRouter(h, NewMiddleware(mwCfg)), h
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return do(t, h, httptest.NewRequest(http.MethodGet, path, nil))
}

func TestHealthLive(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, nil)
	rec, env := get(t, r, "/api/v1/health/live")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Errorf("code %d status %q", rec.Code, env.Status)
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status detection.Status
		want   int
	}{
		{"no cycle yet", detection.Status{}, http.StatusServiceUnavailable},
		{"stale", detection.Status{Cycles: 9, LastCycleAt: viewTime.Add(-time.Hour)}, http.StatusServiceUnavailable},
		{"fresh", detection.Status{Cycles: 9, LastCycleAt: viewTime}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eng := newTestEngine()
			eng.status = tt.status
			r, _ := newTestRouter(t, eng, HandlerConfig{StaleAfter: time.Minute}, nil)
			rec, env := get(t, r, "/api/v1/health/ready")
			if rec.Code != tt.want {
				t.Fatalf("code = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK && (env.Error == nil || env.Error.Code != codeNotReady) {
				t.Errorf("error = %+v, want %s", env.Error, codeNotReady)
			}
		})
	}
}

func TestReadRoutesServeView(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, nil)

	tests := []struct {
		path  string
		count int
	}{
		{"/api/v1/live", 1},
		{"/api/v1/aircraft", 2},
		{"/api/v1/events", 3},
		{"/api/v1/leaderboard", 2},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			rec, env := get(t, r, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
			}
			if env.Metadata.Count != tt.count {
				t.Errorf("count = %d, want %d", env.Metadata.Count, tt.count)
			}
			if env.Metadata.ViewTime == nil || !env.Metadata.ViewTime.Equal(viewTime) {
				t.Errorf("view_time = %v, want %v", env.Metadata.ViewTime, viewTime)
			}
			var items []json.RawMessage
			if err := json.Unmarshal(env.Data, &items); err != nil || len(items) != tt.count {
				t.Errorf("data has %d items (err %v), want %d", len(items), err, tt.count)
			}
		})
	}
}

func TestEventsLimit(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, nil)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 3},
		{"?limit=0", http.StatusOK, 3},
		{"?limit=2", http.StatusOK, 2},
		{"?limit=50", http.StatusOK, 3},
		{"?limit=-1", http.StatusBadRequest, 0},
		{"?limit=1001", http.StatusBadRequest, 0},
		{"?limit=ten", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			rec, env := get(t, r, "/api/v1/events"+tt.query)
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				if env.Error == nil || env.Error.Code != codeValidation {
					t.Errorf("error = %+v, want %s", env.Error, codeValidation)
				}
				return
			}
			var events []models.IntrusionEvent
			if err := json.Unmarshal(env.Data, &events); err != nil {
				t.Fatalf("decode events: %v", err)
			}
			if len(events) != tt.count {
				t.Fatalf("len = %d, want %d", len(events), tt.count)
			}
			if events[0].ID != "100-3" {
				t.Errorf("first event = %s, want the newest", events[0].ID)
			}
		})
	}
}

func TestEventByID(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, nil)

	rec, env := get(t, r, "/api/v1/events/200-2")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var ev models.IntrusionEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil || ev.PilotID != "200" {
		t.Errorf("event = %+v (err %v)", ev, err)
	}

	rec, env = get(t, r, "/api/v1/events/999-1")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != codeNotFound {
		t.Errorf("unknown id: code %d error %+v", rec.Code, env.Error)
	}
}

func TestEventByIDOutsideView(t *testing.T) {
	t.Parallel()
	old := sealedEvent("400-1", "400", viewTime.Add(-30*24*time.Hour))

	tests := []struct {
		name     string
		getErr   error
		wantCode int
	}{
		{"archived event", nil, http.StatusOK},
		{"store failure", errors.New("badger: closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eng := newTestEngine()
			eng.archive = map[string]*models.IntrusionEvent{old.ID: old}
			eng.getErr = tt.getErr
			r, _ := newTestRouter(t, eng, HandlerConfig{}, nil)

			rec, env := get(t, r, "/api/v1/events/400-1")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var ev models.IntrusionEvent
			if err := json.Unmarshal(env.Data, &ev); err != nil || ev.ID != old.ID {
				t.Errorf("event = %+v (err %v)", ev, err)
			}
		})
	}
}

func TestStatusIncludesEngineCounters(t *testing.T) {
	t.Parallel()
	eng := newTestEngine()
	eng.status.PendingCommits = 2
	r, _ := newTestRouter(t, eng, HandlerConfig{}, nil)

	rec, env := get(t, r, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body struct {
		Cycles         uint64 `json:"cycles"`
		PendingCommits int    `json:"pending_commits"`
		ViewCycle      uint64 `json:"view_cycle"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Cycles != 3 || body.PendingCommits != 2 || body.ViewCycle != 42 {
		t.Errorf("status = %+v", body)
	}
}

func TestETagNotModified(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, nil)

	first, _ := get(t, r, "/api/v1/leaderboard")
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("code = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 carried a body: %q", rec.Body.String())
	}
}

func TestSecurityAndRequestHeaders(t *testing.T) {
	t.Parallel()
	mw := DefaultMiddlewareConfig()
	mw.RateLimitDisabled = true
	mw.HTTPS = true
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, mw)

	rec, _ := get(t, r, "/api/v1/live")
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Strict-Transport-Security", "X-Request-ID"} {
		if rec.Header().Get(name) == "" {
			t.Errorf("missing header %s", name)
		}
	}
}

func TestReadRateLimit(t *testing.T) {
	t.Parallel()
	mw := DefaultMiddlewareConfig()
	mw.RateLimitRequests = 2
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, mw)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := get(t, r, "/api/v1/live")
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Health checks are not rate limited.
	if rec, _ := get(t, r, "/api/v1/health/live"); rec.Code != http.StatusOK {
		t.Errorf("health code = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{}, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestWebSocketWithoutHub(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t, newTestEngine(), HandlerConfig{WSOrigins: []string{"*"}}, nil)
	rec, env := get(t, r, "/api/v1/ws")
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil {
		t.Errorf("code = %d error %+v", rec.Code, env.Error)
	}
}

func TestEngineClearErrorMapsTo500(t *testing.T) {
	t.Parallel()
	eng := newTestEngine()
	eng.clearErr = errors.New("disk full")
	r, _ := newTestRouter(t, eng, HandlerConfig{AdminTokenHash: testTokenHash(t)}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/clear", nil)
	req.Header.Set(headerAdminToken, testToken)
	rec, env := do(t, r, req)
	if rec.Code != http.StatusInternalServerError || env.Error == nil || env.Error.Code != codeInternal {
		t.Errorf("code = %d error %+v", rec.Code, env.Error)
	}
}
