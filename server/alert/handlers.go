// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests for alert rules and alerts
type Handler struct {
	service *Service
}

// NewHandler creates a new alert handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all alert routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/alerts/rules", h.ListRules).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/alerts/rules", h.CreateRule).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/alerts/rules/{id}", h.UpdateRule).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/api/v1/alerts/rules/{id}", h.DeleteRule).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/v1/alerts", h.ListAlerts).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/alerts/unread-count", h.UnreadCount).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/alerts/recent", h.RecentAlerts).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/alerts/{id}/acknowledge", h.Acknowledge).Methods("PATCH", "OPTIONS")
}

// ListRules handles GET /api/v1/alerts/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules)
}

// CreateRule handles POST /api/v1/alerts/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), req)
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rule)
}

// UpdateRule handles PATCH /api/v1/alerts/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			h.writeError(w, "Alert rule not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

// DeleteRule handles DELETE /api/v1/alerts/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			h.writeError(w, "Alert rule not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAlerts handles GET /api/v1/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	filter, err := parseAlertFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.ListAlerts(r.Context(), filter)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// UnreadCount handles GET /api/v1/alerts/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp, err := h.service.UnreadCount(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// RecentAlerts handles GET /api/v1/alerts/recent
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	resp, err := h.service.RecentAlerts(r.Context(), limit)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Acknowledge handles PATCH /api/v1/alerts/{id}/acknowledge
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	alert, err := h.service.Acknowledge(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			h.writeError(w, "Alert not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alert)
}

// parseAlertFilter extracts list filters from query parameters.
func parseAlertFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		RuleID: q.Get("rule_id"),
	}

	if raw := q.Get("acknowledged"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("invalid acknowledged parameter")
		}
		filter.Acknowledged = &value
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid since parameter")
		}
		filter.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid limit parameter")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid offset parameter")
		}
		filter.Offset = offset
	}

	return filter, nil
}

// isValidationError reports whether the error is one of the rule
// validation failures surfaced as 400.
func isValidationError(err error) bool {
	return errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrInvalidRuleType) ||
		errors.Is(err, ErrTargetModelRequired) ||
		errors.Is(err, ErrTargetNameRequired)
}

// setCORSHeaders sets CORS headers for cross-origin requests
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// writeError writes the error envelope: a single detail field.
func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
