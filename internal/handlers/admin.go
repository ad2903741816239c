package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"sproutbot/internal/auth"
	"sproutbot/internal/middleware"
	"sproutbot/internal/websocket"
)

// ListIncidents exposes the reconciliation backlog: exchanges where the
// site credited points but the local debit failed.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	if operator, ok := middleware.OperatorFromContext(r.Context()); ok {
		h.log.WithField("operator", operator).Info("incident list requested")
	}
	limit, offset := paginate(r)
	incidents, err := h.incidents.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list incidents")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginate(r)
	entries, err := h.journal.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list journal")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// WSBalances upgrades to a websocket feed of balance movements. Browsers
// cannot set headers on websocket dials, so the token may ride in the
// query string as well.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	if _, err := auth.ParseToken(h.cfg.OperatorJWTSecret, token); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub)
}

func paginate(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
