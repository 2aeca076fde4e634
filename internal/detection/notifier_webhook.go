// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package detection

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// WebhookNotifier POSTs sealed incursions to a webhook endpoint.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client

	mu        sync.Mutex
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookConfig configures NewWebhookNotifier.
type WebhookConfig struct {
	URL       string
	Headers   map[string]string
	RateLimit time.Duration
	Timeout   time.Duration
}

// WebhookPayload is the JSON body sent per sealed incursion.
type WebhookPayload struct {
	EventType string        `json:"event_type"`
	Incursion *SealedNotice `json:"incursion"`
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"`
}

// NewWebhookNotifier returns a notifier; an empty URL leaves it disabled.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &WebhookNotifier{
		url:       cfg.URL,
		headers:   headers,
		rateLimit: cfg.RateLimit,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Enabled() bool { return n.url != "" }

// Send delivers one notice. Calls are spaced at least RateLimit apart; a
// caller waiting for its slot gives up when ctx ends.
func (n *WebhookNotifier) Send(ctx context.Context, notice *SealedNotice) error {
	if !n.Enabled() {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if wait := n.rateLimit - time.Since(n.lastSent); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	body, err := json.Marshal(WebhookPayload{
		EventType: MessageIncursionSealed,
		Incursion: notice,
		Timestamp: time.Now().UTC(),
		Source:    "p56watch",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	n.lastSent = time.Now()
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
