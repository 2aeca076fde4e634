// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/p56watch/internal/logging"
)

// ErrNotifierClosed is returned by Send after Close.
var ErrNotifierClosed = errors.New("notifier closed")

// NATSNotifierConfig configures NewNATSNotifier.
type NATSNotifierConfig struct {
	URL     string
	Subject string
	// Name is the NATS client connection name.
	Name string
}

// NATSNotifier publishes sealed incursions to a core NATS subject through a
// Watermill publisher. The body is the same JSON the webhook receives; the
// message metadata carries the event and aircraft IDs.
type NATSNotifier struct {
	publisher message.Publisher
	subject   string
	breaker   *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewNATSNotifier connects a publisher to cfg.URL. An empty subject returns
// a disabled notifier without connecting. The connection retries in the
// background, so a broker that is down at startup does not fail it.
func NewNATSNotifier(cfg NATSNotifierConfig, logger watermill.LoggerAdapter) (*NATSNotifier, error) {
	if cfg.Subject == "" {
		return &NATSNotifier{}, nil
	}
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}
	name := cfg.Name
	if name == "" {
		name = "p56watch-notify"
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: cfg.URL,
		NatsOptions: []natsgo.Option{
			natsgo.Name(name),
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return newNATSNotifier(pub, cfg.Subject), nil
}

func newNATSNotifier(pub message.Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{
		publisher: pub,
		subject:   subject,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "notify-nats",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			},
		}),
	}
}

func (n *NATSNotifier) Name() string { return "nats" }

func (n *NATSNotifier) Enabled() bool { return n.publisher != nil }

// Send publishes one notice.
func (n *NATSNotifier) Send(ctx context.Context, notice *SealedNotice) error {
	if !n.Enabled() {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}

	body, err := json.Marshal(WebhookPayload{
		EventType: MessageIncursionSealed,
		Incursion: notice,
		Timestamp: time.Now().UTC(),
		Source:    "p56watch",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal incursion notice: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", MessageIncursionSealed)
	msg.Metadata.Set("event_id", notice.Event.ID)
	msg.Metadata.Set("aircraft_id", notice.Event.AircraftID)
	msg.Metadata.Set("merged", strconv.FormatBool(notice.Merged))

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.publisher.Publish(n.subject, msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	return nil
}

// Close releases the publisher. Later Sends fail with ErrNotifierClosed.
func (n *NATSNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.publisher == nil {
		n.closed = true
		return nil
	}
	n.closed = true
	return n.publisher.Close()
}

// Serve implements suture.Service: it holds the publisher open until ctx
// ends.
func (n *NATSNotifier) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := n.Close(); err != nil {
		logging.Warn().Err(err).Msg("Closing NATS notifier")
	}
	return ctx.Err()
}

func (n *NATSNotifier) String() string { return "nats-notifier" }
