// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"arguslm/platform/shared/logger"
)

// keepAliveInterval is how long a stream may sit idle before the server
// sends a keep-alive ping.
const keepAliveInterval = 30 * time.Second

// Archiver stores a served export file in long-term storage.
type Archiver interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Handler handles HTTP requests for benchmarks
type Handler struct {
	engine   *Engine
	bus      Bus
	archive  Archiver
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates a new benchmark handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{
		engine: engine,
		bus:    engine.Bus(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser dashboards connect cross-origin; auth lives elsewhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.New("benchmark"),
	}
}

// NewHandlerWithArchive creates a handler that also archives served export
// files. A nil archive disables archival.
func NewHandlerWithArchive(engine *Engine, archive Archiver) *Handler {
	h := NewHandler(engine)
	h.archive = archive
	return h
}

// RegisterRoutes registers all benchmark routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/benchmarks", h.CreateRun).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/benchmarks", h.ListRuns).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/benchmarks/{id}", h.GetRun).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/benchmarks/{id}/results", h.GetResults).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/benchmarks/{id}/export", h.ExportRun).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/benchmarks/{id}/stream", h.StreamRun).Methods("GET")
}

// CreateRun handles POST /api/v1/benchmarks
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.engine.StartRun(r.Context(), req)
	if err != nil {
		var missing *ModelsNotFoundError
		switch {
		case errors.As(err, &missing):
			h.writeError(w, "Model IDs not found: "+strings.Join(missing.IDs, ", "), http.StatusUnprocessableEntity)
		case isValidationError(err):
			h.writeError(w, err.Error(), http.StatusBadRequest)
		default:
			h.writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}

// ListRuns handles GET /api/v1/benchmarks
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.engine.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// GetRun handles GET /api/v1/benchmarks/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	detail, err := h.engine.Detail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			h.writeError(w, "Benchmark run not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(detail)
}

// GetResults handles GET /api/v1/benchmarks/{id}/results
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp, err := h.engine.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			h.writeError(w, "Benchmark run not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ExportRun handles GET /api/v1/benchmarks/{id}/export
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
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

	id := mux.Vars(r)["id"]
	export, err := h.engine.ExportData(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			h.writeError(w, "Benchmark run not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if format == "json" {
		body, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=benchmark_%s.json", id))
		_, _ = w.Write(body)

		h.archiveExport(r.Context(), "benchmarks/"+id+".json", "application/json", body)
		return
	}

	body, err := benchmarkCSV(export.Results)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=benchmark_%s.csv", id))
	_, _ = w.Write(body)

	h.archiveExport(r.Context(), "benchmarks/"+id+".csv", "text/csv; charset=utf-8", body)
}

// StreamRun handles GET /api/v1/benchmarks/{id}/stream, upgrading to a
// WebSocket subscription on the run's progress stream.
func (h *Handler) StreamRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.engine.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			h.writeError(w, "Benchmark run not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.log.ErrorWithErr("Failed to upgrade benchmark stream", err, map[string]interface{}{
			"run_id": id,
		})
		return
	}

	sub := h.bus.Subscribe(id)
	h.streamEvents(conn, sub)
}

// streamEvents bridges one subscription onto a WebSocket connection. It
// owns all writes; client messages arrive through a reader goroutine.
// The loop ends on a terminal event, a write failure, client disconnect,
// or the hub dropping the subscription.
func (h *Handler) streamEvents(conn *websocket.Conn, sub *Subscription) {
	defer conn.Close()
	defer h.bus.Unsubscribe(sub)

	clientMsgs := readClientMessages(conn)

	idle := time.NewTicker(keepAliveInterval)
	defer idle.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			if event.Terminal() {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

		case msg, ok := <-clientMsgs:
			if !ok {
				return
			}
			idle.Reset(keepAliveInterval)
			if msg == "ping" {
				if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
					return
				}
			}

		case <-idle.C:
			if err := conn.WriteJSON(Event{Type: EventPing}); err != nil {
				return
			}
		}
	}
}

// readClientMessages drains inbound text frames into a channel. The
// channel closes when the client disconnects.
func readClientMessages(conn *websocket.Conn) <-chan string {
	ch := make(chan string, 4)
	go func() {
		defer close(ch)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case ch <- string(data):
			default:
			}
		}
	}()
	return ch
}

// benchmarkCSV renders export rows with the fixed benchmark column set.
func benchmarkCSV(rows []ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	_ = cw.Write([]string{"model_name", "provider", "ttft_ms", "tps",
		"tps_excluding_ttft", "total_latency_ms", "input_tokens",
		"output_tokens", "error", "timestamp"})
	for _, row := range rows {
		_ = cw.Write([]string{
			row.ModelName,
			row.Provider,
			csvFloat(row.TTFTMS),
			csvFloat(row.TPS),
			csvFloat(row.TPSExcludingTTFT),
			csvFloat(row.TotalLatencyMS),
			strconv.Itoa(row.InputTokens),
			strconv.Itoa(row.OutputTokens),
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

// csvFloat renders a float without trailing zeros.
func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
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

// isValidationError reports whether err should surface as a 400.
func isValidationError(err error) bool {
	return errors.Is(err, ErrNoModels) ||
		errors.Is(err, ErrInvalidPromptPack) ||
		errors.Is(err, ErrInvalidConfig)
}

// parseListFilter extracts run listing filters from query parameters.
func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Status: q.Get("status")}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid page parameter")
		}
		filter.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid per_page parameter")
		}
		filter.PerPage = perPage
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
