// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"arguslm/platform/server/promptpack"
	"arguslm/platform/shared/logger"
)

// Archiver stores a served export file in long-term storage.
type Archiver interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Handler handles HTTP requests for monitoring
type Handler struct {
	service *Service
	archive Archiver
	log     *logger.Logger
}

// NewHandler creates a new monitoring handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, log: logger.New("monitoring")}
}

// NewHandlerWithArchive creates a handler that also archives served export
// files. A nil archive disables archival.
func NewHandlerWithArchive(service *Service, archive Archiver) *Handler {
	h := NewHandler(service)
	h.archive = archive
	return h
}

// RegisterRoutes registers all monitoring routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/monitoring/config", h.GetConfig).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/monitoring/config", h.UpdateConfig).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/api/v1/monitoring/run", h.TriggerRun).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/monitoring/uptime", h.UptimeHistory).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/monitoring/uptime/export", h.ExportUptime).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/monitoring/prompt-packs", h.ListPromptPacks).Methods("GET", "OPTIONS")
}

// GetConfig handles GET /api/v1/monitoring/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	cfg, err := h.service.GetConfig(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

// UpdateConfig handles PATCH /api/v1/monitoring/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := h.service.UpdateConfig(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidInterval) || errors.Is(err, ErrInvalidPromptPack) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

// TriggerRun handles POST /api/v1/monitoring/run
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := h.service.TriggerRun(r.Context())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// UptimeHistory handles GET /api/v1/monitoring/uptime
func (h *Handler) UptimeHistory(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.History(r.Context(), filter)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ExportUptime handles GET /api/v1/monitoring/uptime/export
func (h *Handler) ExportUptime(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		h.writeError(w, "format must be json or csv", http.StatusBadRequest)
		return
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.service.Export(r.Context(), filter)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")

	if format == "json" {
		body, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=uptime_%s.json", stamp))
		_, _ = w.Write(body)

		h.archiveExport(r.Context(), "uptime/"+stamp+".json", "application/json", body)
		return
	}

	body, err := uptimeCSV(rows)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=uptime_%s.csv", stamp))
	_, _ = w.Write(body)

	h.archiveExport(r.Context(), "uptime/"+stamp+".csv", "text/csv; charset=utf-8", body)
}

// ListPromptPacks handles GET /api/v1/monitoring/prompt-packs
func (h *Handler) ListPromptPacks(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"packs": promptpack.List()})
}

// uptimeCSV renders export rows with the fixed uptime column set.
func uptimeCSV(rows []ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	_ = cw.Write([]string{"model_name", "provider", "status", "latency_ms", "error", "timestamp"})
	for _, row := range rows {
		_ = cw.Write([]string{
			row.ModelName,
			row.Provider,
			row.Status,
			csvFloat(row.LatencyMS),
			csvString(row.Error),
			row.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to render csv: %w", err)
	}
	return buf.Bytes(), nil
}

// csvFloat renders an optional float; nil becomes an empty cell.
func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// csvString renders an optional string; nil becomes an empty cell.
func csvString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// archiveExport stores a served export file; failures are logged, never
// surfaced to the HTTP caller.
func (h *Handler) archiveExport(ctx context.Context, key, contentType string, body []byte) {
	if h.archive == nil {
		return
	}
	if err := h.archive.Put(ctx, key, contentType, body); err != nil {
		h.log.ErrorWithErr("Failed to archive export", err, map[string]interface{}{"key": key})
	}
}

// parseHistoryFilter extracts uptime history filters from query parameters.
func parseHistoryFilter(r *http.Request) (HistoryFilter, error) {
	q := r.URL.Query()
	filter := HistoryFilter{
		ModelID: q.Get("model_id"),
		Status:  q.Get("status"),
	}

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid since parameter")
		}
		filter.Since = &since
	}
	if raw := q.Get("enabled_only"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("invalid enabled_only parameter")
		}
		filter.EnabledOnly = value
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
