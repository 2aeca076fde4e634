// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/tomtom215/p56watch/internal/websocket"
)

func TestCheckOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"wildcard without origin", []string{"*"}, "", true},
		{"exact match", []string{"https://dash.example"}, "https://dash.example", true},
		{"mismatch", []string{"https://dash.example"}, "https://evil.example", false},
		{"missing origin", []string{"https://dash.example"}, "", false},
		{"nothing allowed", nil, "https://dash.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHandler(newTestEngine(), nil, HandlerConfig{WSOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebSocketStreamsHubMessages(t *testing.T) {
	hub := ws.NewHub()
	hub.SetGreeting(func() (ws.Message, bool) {
		return ws.Message{Type: ws.MessageTypeWelcome}, true
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := NewHandler(newTestEngine(), hub, HandlerConfig{WSOrigins: []string{"https://dash.example"}})
	mw := DefaultMiddlewareConfig()
	mw.RateLimitDisabled = true
	srv := httptest.NewServer(NewRouter(h, NewMiddleware(mw)))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	// Wrong origin is refused during the handshake.
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("dial with a foreign origin succeeded")
	}
	if resp != nil {
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("handshake status = %d, want 403", resp.StatusCode)
		}
		resp.Body.Close()
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://dash.example"}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ws.Message
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != ws.MessageTypeWelcome {
		t.Fatalf("greeting = %+v (err %v)", msg, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.BroadcastJSON("incursion_sealed", map[string]string{"id": "100-3"})
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "incursion_sealed" {
		t.Errorf("broadcast = %+v (err %v)", msg, err)
	}
}
