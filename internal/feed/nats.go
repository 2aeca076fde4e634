// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/metrics"
	"github.com/tomtom215/p56watch/internal/models"
)

// ConnectNATS dials url and keeps reconnecting in the background.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSSource keeps the newest snapshot published on a subject. Older or
// duplicate snapshots are discarded on arrival.
type NATSSource struct {
	sub *nats.Subscription

	mu        sync.Mutex
	latest    *models.Snapshot
	delivered time.Time
}

// NewNATSSource subscribes to subject on nc.
func NewNATSSource(nc *nats.Conn, subject string) (*NATSSource, error) {
	s := &NATSSource{}
	sub, err := nc.Subscribe(subject, s.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.sub = sub
	logging.Info().Str("subject", subject).Msg("Subscribed to snapshot subject")
	return s, nil
}

func (s *NATSSource) handle(msg *nats.Msg) {
	snap, err := Decode(msg.Data)
	if err != nil {
		metrics.RecordFeedError(Reason(err))
		logging.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping undecodable snapshot")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && !snap.Timestamp.After(s.latest.Timestamp) {
		return
	}
	s.latest = snap
}

// Fetch returns the newest snapshot once. Until a newer one arrives it
// returns ErrNoSnapshot.
func (s *NATSSource) Fetch(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || !s.latest.Timestamp.After(s.delivered) {
		return nil, ErrNoSnapshot
	}
	s.delivered = s.latest.Timestamp
	return s.latest, nil
}

// Close removes the subscription.
func (s *NATSSource) Close() error {
	return s.sub.Unsubscribe()
}
