// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"time"
)

// Repository is the persistence boundary for benchmark runs and results.
type Repository interface {
	// CreateRun persists a new run row.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun returns one run with its result count, or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns one page of runs, newest first, plus the unpaged
	// total. Each run carries its result count.
	ListRuns(ctx context.Context, filter ListFilter) ([]Run, int, error)

	// SetRunStatus moves a run to status, stamping completed_at when the
	// status is terminal. Returns ErrRunNotFound for unknown ids.
	SetRunStatus(ctx context.Context, id, status string, completedAt *time.Time) error

	// InsertResults writes all measured results of a run in one
	// transaction, preserving slice order.
	InsertResults(ctx context.Context, results []Result) error

	// ListResults returns a run's results in insertion order with model
	// names joined.
	ListResults(ctx context.Context, runID string) ([]Result, error)

	// ExportRows returns a run's results shaped for export, with model
	// and provider names joined.
	ExportRows(ctx context.Context, runID string) ([]ExportRow, error)
}
