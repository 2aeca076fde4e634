// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/p56watch/internal/audit"
	"github.com/tomtom215/p56watch/internal/detection"
	"github.com/tomtom215/p56watch/internal/models"
	"github.com/tomtom215/p56watch/internal/store"
	"github.com/tomtom215/p56watch/internal/validation"
	ws "github.com/tomtom215/p56watch/internal/websocket"
)

// Engine is the part of detection.Engine the API reads from.
type Engine interface {
	View() *detection.View
	Status() detection.Status
	Event(ctx context.Context, id string) (*models.IntrusionEvent, error)
	Clear(ctx context.Context, authorized bool) (int, error)
}

// HandlerConfig carries what the handlers need besides the engine.
type HandlerConfig struct {
	// StaleAfter fails readiness when the last completed cycle is older.
	StaleAfter time.Duration
	// AdminTokenHash is a bcrypt hash; empty rejects every clear.
	AdminTokenHash string
	// WSOrigins are the origins allowed to open /api/v1/ws; "*" allows any.
	WSOrigins []string
	// Audit records admin actions. Nil disables the trail.
	Audit *audit.Logger
}

// Handler serves every API route.
type Handler struct {
	engine    Engine
	hub       *ws.Hub
	guard     *AdminGuard
	cfg       HandlerConfig
	startTime time.Time
	now       func() time.Time
}

// NewHandler builds a Handler. hub may be nil, in which case /api/v1/ws
// answers 503.
func NewHandler(engine Engine, hub *ws.Hub, cfg HandlerConfig) *Handler {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Minute
	}
	return &Handler{
		engine:    engine,
		hub:       hub,
		guard:     NewAdminGuard(cfg.AdminTokenHash),
		cfg:       cfg,
		startTime: time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(h.now().Sub(h.startTime).Seconds()),
	})
}

// HealthReady succeeds once a cycle has completed within StaleAfter.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	switch {
	case st.Cycles == 0:
		respondError(w, http.StatusServiceUnavailable, codeNotReady, "no detection cycle has completed", nil)
	case h.now().Sub(st.LastCycleAt) > h.cfg.StaleAfter:
		respondError(w, http.StatusServiceUnavailable, codeNotReady, "last detection cycle is stale", nil)
	default:
		respondOK(w, r, map[string]interface{}{
			"status":        "ready",
			"cycles":        st.Cycles,
			"last_cycle_at": st.LastCycleAt,
		})
	}
}

// Live lists aircraft with an open incursion.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	respondView(w, r, v.Live, v.GeneratedAt, len(v.Live))
}

// Events lists sealed incursions, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit, ok := getIntParam(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be an integer", nil)
		return
	}
	req := EventsRequest{Limit: limit}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	v := h.engine.View()
	events := v.RecentEvents(req.Limit)
	respondView(w, r, events, v.GeneratedAt, len(events))
}

// Event returns one sealed incursion by id.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	req := EventIDRequest{ID: chi.URLParam(r, "id")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	v := h.engine.View()
	ev, err := h.engine.Event(r.Context(), req.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, "event not found", nil)
	case err != nil:
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to read event", err)
	default:
		respondView(w, r, ev, v.GeneratedAt, 1)
	}
}

// Aircraft lists every aircraft classified in the last cycle.
func (h *Handler) Aircraft(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	respondView(w, r, v.Aircraft, v.GeneratedAt, len(v.Aircraft))
}

// Leaderboard returns sealed incursion counts per pilot.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	respondView(w, r, v.Leaderboard, v.GeneratedAt, len(v.Leaderboard))
}

// Status returns the engine counters along with the view cycle.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	respondOK(w, r, struct {
		detection.Status
		ViewCycle uint64 `json:"view_cycle"`
		Clients   int    `json:"websocket_clients"`
	}{
		Status:    h.engine.Status(),
		ViewCycle: v.Cycle,
		Clients:   h.clientCount(),
	})
}

func (h *Handler) clientCount() int {
	if h.hub == nil {
		return 0
	}
	return h.hub.GetClientCount()
}
