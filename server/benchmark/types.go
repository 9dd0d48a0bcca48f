// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package benchmark plans, executes, and persists benchmark runs: a fleet
// of models each streamed num_runs times (plus discarded warmups) against
// one prompt pack, with TTFT/TPS percentile statistics on read and live
// progress over the run's event stream.
package benchmark

import (
	"fmt"
	"time"

	"arguslm/platform/server/promptpack"
)

// Run status values. A run moves pending -> running -> completed, or to
// failed on an orchestrator-level error.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Config bounds and defaults for one run.
const (
	DefaultMaxTokens  = 200
	DefaultNumRuns    = 3
	DefaultWarmupRuns = 1

	maxMaxTokens = 4096
	maxNumRuns   = 10
)

// Run is one persisted benchmark run. ModelIDs keeps the planning order;
// ResultCount is joined on reads and never stored.
type Run struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	ModelIDs    []string   `json:"model_ids"`
	PromptPack  string     `json:"prompt_pack"`
	TriggeredBy string     `json:"triggered_by"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ResultCount int        `json:"result_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Result is one measured (non-warmup) task. A task that failed carries
// Error and all-zero metrics. ModelName is joined on reads.
type Result struct {
	ID               string    `json:"id"`
	RunID            string    `json:"-"`
	ModelID          string    `json:"model_id"`
	ModelName        *string   `json:"model_name"`
	TTFTMS           float64   `json:"ttft_ms"`
	TPS              float64   `json:"tps"`
	TPSExcludingTTFT float64   `json:"tps_excluding_ttft"`
	TotalLatencyMS   float64   `json:"total_latency_ms"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	EstimatedCost    *float64  `json:"estimated_cost"`
	Error            *string   `json:"error"`
	CreatedAt        time.Time `json:"-"`
}

// CreateRequest is the request body for starting a run. WarmupRuns is a
// pointer so an explicit 0 is distinguishable from absent.
type CreateRequest struct {
	ModelIDs   []string `json:"model_ids"`
	PromptPack string   `json:"prompt_pack"`
	Name       string   `json:"name"`
	MaxTokens  int      `json:"max_tokens"`
	NumRuns    int      `json:"num_runs"`
	WarmupRuns *int     `json:"warmup_runs"`
}

// Validate checks required fields and clamps nothing: out-of-range values
// are rejected rather than silently adjusted.
func (r CreateRequest) Validate() error {
	if len(r.ModelIDs) == 0 {
		return ErrNoModels
	}
	if !promptpack.Valid(r.PromptPack) {
		return fmt.Errorf("%w: %q", ErrInvalidPromptPack, r.PromptPack)
	}
	if r.MaxTokens < 0 || r.MaxTokens > maxMaxTokens {
		return fmt.Errorf("%w: max_tokens must be between 1 and %d", ErrInvalidConfig, maxMaxTokens)
	}
	if r.NumRuns < 0 || r.NumRuns > maxNumRuns {
		return fmt.Errorf("%w: num_runs must be between 1 and %d", ErrInvalidConfig, maxNumRuns)
	}
	if r.WarmupRuns != nil && *r.WarmupRuns < 0 {
		return fmt.Errorf("%w: warmup_runs must not be negative", ErrInvalidConfig)
	}
	return nil
}

// config resolves the request into concrete execution parameters.
func (r CreateRequest) config() Config {
	cfg := Config{
		MaxTokens:  r.MaxTokens,
		NumRuns:    r.NumRuns,
		WarmupRuns: DefaultWarmupRuns,
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.NumRuns == 0 {
		cfg.NumRuns = DefaultNumRuns
	}
	if r.WarmupRuns != nil {
		cfg.WarmupRuns = *r.WarmupRuns
	}
	return cfg
}

// Config is the resolved execution profile for one run.
type Config struct {
	MaxTokens  int
	NumRuns    int
	WarmupRuns int
}

// StartResponse acknowledges an accepted run.
type StartResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ListFilter narrows a run listing. Zero values mean "no filter".
type ListFilter struct {
	Status  string
	Page    int
	PerPage int
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// normalize clamps pagination to the documented bounds.
func (f *ListFilter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
}

// ListResponse is the paginated run listing envelope.
type ListResponse struct {
	Runs    []Run `json:"runs"`
	Total   int   `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// Statistics is the percentile block computed over non-errored results.
type Statistics struct {
	TTFTP50 float64 `json:"ttft_p50"`
	TTFTP95 float64 `json:"ttft_p95"`
	TTFTP99 float64 `json:"ttft_p99"`
	TPSP50  float64 `json:"tps_p50"`
	TPSP95  float64 `json:"tps_p95"`
	TPSP99  float64 `json:"tps_p99"`
}

// ModelStatistics is the per-model percentile block in the detail view.
type ModelStatistics struct {
	ModelID    string     `json:"model_id"`
	ModelName  *string    `json:"model_name"`
	Runs       int        `json:"runs"`
	Errors     int        `json:"errors"`
	Statistics Statistics `json:"statistics"`
}

// DetailResponse is the run detail envelope: the run, its results, the
// aggregate percentile block, and one block per model.
type DetailResponse struct {
	Run
	Results         []Result          `json:"results"`
	Statistics      Statistics        `json:"statistics"`
	ModelStatistics []ModelStatistics `json:"model_statistics"`
}

// ResultsResponse is the bare results listing envelope.
type ResultsResponse struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
}

// ExportRow is one result in the export file. The column set and order
// are fixed.
type ExportRow struct {
	ModelName        string    `json:"model_name"`
	Provider         string    `json:"provider"`
	TTFTMS           float64   `json:"ttft_ms"`
	TPS              float64   `json:"tps"`
	TPSExcludingTTFT float64   `json:"tps_excluding_ttft"`
	TotalLatencyMS   float64   `json:"total_latency_ms"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	Error            *string   `json:"error"`
	Timestamp        time.Time `json:"timestamp"`
}

// Export is the JSON export envelope for one run.
type Export struct {
	RunID       string      `json:"run_id"`
	RunName     string      `json:"run_name"`
	PromptPack  string      `json:"prompt_pack"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Results     []ExportRow `json:"results"`
}
