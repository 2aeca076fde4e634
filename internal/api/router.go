// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/p56watch/internal/middleware"
)

// NewRouter mounts h on a chi router.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	if mw == nil {
		mw = NewMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)

		// The websocket route is long lived; compression and rate limits
		// apply to the plain JSON routes only.
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/live", h.Live)
			r.Get("/events", h.Events)
			r.Get("/events/{id}", h.Event)
			r.Get("/aircraft", h.Aircraft)
			r.Get("/leaderboard", h.Leaderboard)
			r.Get("/status", h.Status)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.AdminRateLimit())
			r.Post("/admin/clear", h.Clear)
			r.Get("/admin/audit", h.AuditTrail)
		})
	})

	return r
}
