// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tomtom215/p56watch/internal/feed"
)

type recorder struct{ calls *[]string }

func (r recorder) Close() error { *r.calls = append(*r.calls, "source"); return nil }

type connRecorder struct{ calls *[]string }

func (r connRecorder) Close() { *r.calls = append(*r.calls, "conn") }

type serverRecorder struct{ calls *[]string }

func (r serverRecorder) Shutdown() { *r.calls = append(*r.calls, "server") }

func TestNATSServiceShutdownOrder(t *testing.T) {
	t.Parallel()
	var calls []string
	svc := NewNATSService(recorder{&calls}, connRecorder{&calls}, serverRecorder{&calls})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}

	want := []string{"source", "conn", "server"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls = %v, want %v", calls, want)
			break
		}
	}
}

func TestNATSServiceNilParts(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewNATSService(nil, nil, nil).Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
}

func TestNATSServiceStopsEmbeddedServer(t *testing.T) {
	srv, err := feed.StartEmbeddedServer("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbeddedServer: %v", err)
	}
	nc, err := feed.ConnectNATS(srv.ClientURL(), "services-test")
	if err != nil {
		srv.Shutdown()
		t.Fatalf("ConnectNATS: %v", err)
	}
	src, err := feed.NewNATSSource(nc, "vatsim.snapshot")
	if err != nil {
		nc.Close()
		srv.Shutdown()
		t.Fatalf("NewNATSSource: %v", err)
	}

	svc := NewNATSService(src, nc, srv)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	if nc.Status() != nats.CLOSED {
		t.Errorf("connection status = %v, want CLOSED", nc.Status())
	}
	if _, err := nats.Connect(srv.ClientURL(), nats.Timeout(200*time.Millisecond)); err == nil {
		t.Error("embedded server still accepts connections")
	}
}
