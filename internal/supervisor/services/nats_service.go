// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package services

import (
	"context"
	"io"
	"sync"

	"github.com/tomtom215/p56watch/internal/logging"
)

// NATSServer is the shutdown half of feed.EmbeddedServer.
type NATSServer interface {
	Shutdown()
}

// NATSConn is the close half of *nats.Conn.
type NATSConn interface {
	Close()
}

// NATSService holds the NATS pieces that main starts before the tree runs:
// the feed subscription, its connection and optionally the embedded server.
// Serve waits for the tree to stop, then closes them in that order so the
// client does not reconnect to a server that is going away.
type NATSService struct {
	source io.Closer
	conn   NATSConn
	server NATSServer
	once   sync.Once
}

// NewNATSService takes ownership of its arguments. Any of them may be nil.
func NewNATSService(source io.Closer, conn NATSConn, server NATSServer) *NATSService {
	return &NATSService{source: source, conn: conn, server: server}
}

// Serve implements suture.Service.
func (s *NATSService) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Close()
	return ctx.Err()
}

// Close releases everything the service owns. It is safe to call more than
// once, and is used directly when startup fails before the tree runs.
func (s *NATSService) Close() {
	s.once.Do(s.shutdown)
}

func (s *NATSService) shutdown() {
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			logging.Warn().Err(err).Msg("Closing NATS feed subscription")
		}
	}
	if s.conn != nil {
		s.conn.Close()
	}
	if s.server != nil {
		s.server.Shutdown()
		logging.Info().Msg("Embedded NATS server stopped")
	}
}

func (s *NATSService) String() string { return "nats" }
