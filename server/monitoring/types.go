// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package monitoring probes monitored models on a schedule and records the
// results as uptime checks. A single persisted configuration row controls
// the interval and prompt pack; interval changes take effect only through
// the scheduler's Configure.
package monitoring

import "time"

// Check statuses.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDegraded = "degraded"
)

// Defaults for the lazily created configuration row.
const (
	DefaultIntervalMinutes = 15
)

// Config is the process-wide monitoring configuration. Exactly one row
// exists; reads create it with defaults when missing.
type Config struct {
	ID              string     `json:"id"`
	IntervalMinutes int        `json:"interval_minutes"`
	PromptPack      string     `json:"prompt_pack"`
	Enabled         bool       `json:"enabled"`
	LastRunAt       *time.Time `json:"last_run_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"-"`
}

// UpdateConfigRequest carries a partial configuration update. Nil fields
// are left untouched.
type UpdateConfigRequest struct {
	IntervalMinutes *int    `json:"interval_minutes"`
	PromptPack      *string `json:"prompt_pack"`
	Enabled         *bool   `json:"enabled"`
}

// Check is one uptime probe result. Metric fields are set only for checks
// that reached the provider; a down check carries the error instead.
type Check struct {
	ID           string
	ModelID      string
	Status       string
	LatencyMS    *float64
	TTFTMS       *float64
	TPS          *float64
	OutputTokens *int
	Error        *string
	CreatedAt    time.Time
}

// HistoryRow is a check joined with its model's display name for the
// uptime history listing.
type HistoryRow struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"model_id"`
	ModelName string    `json:"model_name"`
	Status    string    `json:"status"`
	LatencyMS *float64  `json:"latency_ms"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryFilter narrows the uptime history listing. EnabledOnly keeps only
// checks whose model currently has monitoring enabled.
type HistoryFilter struct {
	ModelID     string
	Status      string
	Since       *time.Time
	EnabledOnly bool
	Limit       int
	Offset      int
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// normalize clamps pagination to sane bounds.
func (f *HistoryFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Limit > maxHistoryLimit {
		f.Limit = maxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// HistoryResponse is the paginated uptime history envelope.
type HistoryResponse struct {
	Items  []HistoryRow `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// RunResponse acknowledges a manually triggered monitoring run.
type RunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ExportRow is one line of an uptime export file.
type ExportRow struct {
	ModelName string    `json:"model_name"`
	Provider  string    `json:"provider"`
	Status    string    `json:"status"`
	LatencyMS *float64  `json:"latency_ms"`
	Error     *string   `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
