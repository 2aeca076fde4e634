// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/p56watch/internal/feed"
)

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	messages []*message.Message
	closed   bool
}

func (p *fakePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

func TestNATSNotifierDisabledWithoutSubject(t *testing.T) {
	t.Parallel()
	n, err := NewNATSNotifier(NATSNotifierConfig{URL: "nats://127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatalf("NewNATSNotifier: %v", err)
	}
	if n.Enabled() {
		t.Fatal("notifier without subject should be disabled")
	}
	if err := n.Send(context.Background(), testNotice()); err != nil {
		t.Errorf("Send on disabled notifier = %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestNATSNotifierMetadata(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	n := newNATSNotifier(pub, "p56.sealed")
	notice := testNotice()
	notice.Merged = true

	if err := n.Send(context.Background(), notice); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(pub.messages) != 1 || pub.topics[0] != "p56.sealed" {
		t.Fatalf("published %d messages to %v", len(pub.messages), pub.topics)
	}
	msg := pub.messages[0]
	for key, want := range map[string]string{
		"event_type":  MessageIncursionSealed,
		"event_id":    notice.Event.ID,
		"aircraft_id": "1234567",
		"merged":      "true",
	} {
		if got := msg.Metadata.Get(key); got != want {
			t.Errorf("metadata %s = %q, want %q", key, got, want)
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.EventType != MessageIncursionSealed || payload.Incursion.Event.ID != notice.Event.ID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestNATSNotifierBreakerAndClose(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	n := newNATSNotifier(pub, "p56.sealed")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := n.Send(ctx, testNotice()); err == nil {
			t.Fatalf("Send %d succeeded against a failing publisher", i)
		}
	}
	err := n.Send(ctx, testNotice())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Send with open breaker = %v, want ErrOpenState", err)
	}
	if got := pub.calls(); got != 5 {
		t.Errorf("publisher called %d times, want 5", got)
	}

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pub.closed {
		t.Error("publisher not closed")
	}
	if err := n.Send(ctx, testNotice()); !errors.Is(err, ErrNotifierClosed) {
		t.Errorf("Send after Close = %v, want ErrNotifierClosed", err)
	}
}

func TestNATSNotifierPublishesToServer(t *testing.T) {
	srv, err := feed.StartEmbeddedServer("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbeddedServer: %v", err)
	}
	defer srv.Shutdown()

	nc, err := feed.ConnectNATS(srv.ClientURL(), "notify-test")
	if err != nil {
		t.Fatalf("ConnectNATS: %v", err)
	}
	defer nc.Close()
	sub, err := nc.SubscribeSync("p56.sealed")
	if err != nil {
		t.Fatalf("SubscribeSync: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	n, err := NewNATSNotifier(NATSNotifierConfig{URL: srv.ClientURL(), Subject: "p56.sealed"}, nil)
	if err != nil {
		t.Fatalf("NewNATSNotifier: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx) }()

	notice := testNotice()
	if err := n.Send(context.Background(), notice); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no message on subject: %v", err)
	}
	var payload WebhookPayload
	if err := json.Unmarshal(got.Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Incursion == nil || payload.Incursion.Event.ID != notice.Event.ID {
		t.Errorf("payload = %+v", payload)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if err := n.Send(context.Background(), notice); !errors.Is(err, ErrNotifierClosed) {
		t.Errorf("Send after Serve returned = %v, want ErrNotifierClosed", err)
	}
}
