// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/metrics"
	"github.com/tomtom215/p56watch/internal/models"
)

const (
	breakerName  = "feed-http"
	maxBodyBytes = 64 << 20
)

// HTTPConfig configures NewHTTPSource.
type HTTPConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	// RateLimit is the maximum fetches per second. Zero disables limiting.
	RateLimit float64
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// HTTPSource polls the data feed over HTTP.
type HTTPSource struct {
	url       string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	cb        *gobreaker.CircuitBreaker[*models.Snapshot]

	mu   sync.Mutex
	last time.Time
}

// NewHTTPSource returns a source for cfg.URL.
//
// The breaker opens after 5 consecutive failures and retries after
// BreakerTimeout (default one minute), allowing one request through while
// half-open.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "p56watch"
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[*models.Snapshot](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= 5
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening feed circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &HTTPSource{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		cb:        cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Fetch downloads and decodes one snapshot. A snapshot whose timestamp is
// not after the last accepted one yields ErrStaleSnapshot.
func (s *HTTPSource) Fetch(ctx context.Context) (*models.Snapshot, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	snap, err := s.cb.Execute(func() (*models.Snapshot, error) {
		return s.fetch(ctx)
	})
	metrics.FeedFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !snap.Timestamp.After(s.last) {
		return nil, fmt.Errorf("%w: %s", ErrStaleSnapshot, snap.Timestamp.Format(time.RFC3339))
	}
	s.last = snap.Timestamp
	return snap, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (*models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFeedUnavailable, err)
	}
	return Decode(body)
}

// String names the source in logs.
func (s *HTTPSource) String() string { return "http:" + s.url }
