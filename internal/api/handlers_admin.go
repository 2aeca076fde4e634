// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/p56watch/internal/audit"
	"github.com/tomtom215/p56watch/internal/detection"
	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/middleware"
	"github.com/tomtom215/p56watch/internal/models"
	"github.com/tomtom215/p56watch/internal/validation"
)

const headerAdminToken = "X-Admin-Token"

// maxAdminTokenLen matches bcrypt's input limit.
const maxAdminTokenLen = 72

// AdminGuard checks the admin token against a bcrypt hash. The engine only
// learns the verdict.
type AdminGuard struct {
	hash []byte
}

// NewAdminGuard returns a guard for hash. An empty hash rejects everything.
func NewAdminGuard(hash string) *AdminGuard {
	return &AdminGuard{hash: []byte(strings.TrimSpace(hash))}
}

// Enabled reports whether a hash is configured.
func (g *AdminGuard) Enabled() bool { return len(g.hash) > 0 }

// Authorized reports whether r presents the admin token, either in
// X-Admin-Token or as a Bearer token.
func (g *AdminGuard) Authorized(r *http.Request) bool {
	if !g.Enabled() {
		return false
	}
	token := adminToken(r)
	if token == "" || len(token) > maxAdminTokenLen {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(token)) == nil
}

func adminToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(headerAdminToken)); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Clear empties the event log and leaderboard.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	authorized := h.guard.Authorized(r)
	n, err := h.engine.Clear(r.Context(), authorized)
	switch {
	case errors.Is(err, detection.ErrUnauthorized):
		h.recordClear(r, audit.OutcomeDenied, 0, nil)
		respondError(w, http.StatusUnauthorized, codeUnauthorized, "admin token required", nil)
		return
	case err != nil:
		h.recordClear(r, audit.OutcomeFailure, 0, err)
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to clear events", err)
		return
	}

	h.recordClear(r, audit.OutcomeSuccess, n, nil)
	respondOK(w, r, &models.ClearResult{Cleared: n})
}

// AuditTrail lists recent admin actions, newest first. It requires the
// admin token like Clear.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if !h.guard.Authorized(r) {
		respondError(w, http.StatusUnauthorized, codeUnauthorized, "admin token required", nil)
		return
	}
	if h.cfg.Audit == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "audit trail disabled", nil)
		return
	}
	limit, ok := getIntParam(r, "limit", 100)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be an integer", nil)
		return
	}
	req := EventsRequest{Limit: limit}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	events, err := h.cfg.Audit.Query(r.Context(), audit.QueryFilter{Limit: req.Limit})
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to read audit trail", err)
		return
	}
	h.cfg.Audit.Log(&audit.Event{
		Type:        audit.EventTypeAuditViewed,
		Outcome:     audit.OutcomeSuccess,
		Source:      auditSource(r),
		RequestID:   middleware.GetRequestID(r.Context()),
		Description: "audit trail viewed",
	})
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     events,
		Metadata: models.Metadata{Timestamp: time.Now().UTC(), Count: len(events)},
	})
}

func (h *Handler) recordClear(r *http.Request, outcome audit.Outcome, cleared int, err error) {
	requestID := middleware.GetRequestID(r.Context())
	if outcome == audit.OutcomeDenied {
		logging.Warn().
			Str("remote", sanitizeLogValue(r.RemoteAddr)).
			Str("request_id", requestID).
			Msg("Rejected unauthorized clear")
	}
	if h.cfg.Audit != nil {
		h.cfg.Audit.LogClear(auditSource(r), requestID, outcome, cleared, err)
	}
}

func auditSource(r *http.Request) audit.Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ua := r.UserAgent()
	if len(ua) > 256 {
		ua = ua[:256]
	}
	return audit.Source{IP: sanitizeLogValue(ip), UserAgent: sanitizeLogValue(ua)}
}
