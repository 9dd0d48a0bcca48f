// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"time"
)

// Repository defines the persistence interface for the monitoring
// configuration and uptime checks.
type Repository interface {
	// GetConfig returns the singleton configuration, creating it with
	// defaults on first read.
	GetConfig(ctx context.Context) (*Config, error)

	// UpdateConfig persists interval, prompt pack, and enabled flag.
	UpdateConfig(ctx context.Context, cfg *Config) error

	// TouchLastRun stamps the configuration with the completion time of
	// a monitoring tick.
	TouchLastRun(ctx context.Context, configID string, at time.Time) error

	// InsertChecks writes a batch of uptime checks in one transaction.
	InsertChecks(ctx context.Context, checks []Check) error

	// ListChecks returns one page of history rows, newest first, plus
	// the unpaged total.
	ListChecks(ctx context.Context, filter HistoryFilter) ([]HistoryRow, int, error)

	// ExportChecks returns every row matching the filter, newest first,
	// with model and provider names joined.
	ExportChecks(ctx context.Context, filter HistoryFilter) ([]ExportRow, error)
}
