// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository persists runs and results in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const runColumns = `
	id, name, model_ids, prompt_pack, status, triggered_by,
	started_at, completed_at, created_at, updated_at`

const resultColumns = `
	id, run_id, model_id, ttft_ms, tps, tps_excluding_ttft,
	total_latency_ms, input_tokens, output_tokens, estimated_cost,
	error, created_at`

// CreateRun persists a new run row.
func (r *PostgresRepository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO benchmark_runs (id, name, model_ids, prompt_pack, status,
		                            triggered_by, started_at, completed_at,
		                            created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Name,
		pq.Array(run.ModelIDs),
		run.PromptPack,
		run.Status,
		run.TriggeredBy,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create benchmark run: %w", err)
	}

	return nil
}

// GetRun returns one run with its result count, or ErrRunNotFound.
func (r *PostgresRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM benchmark_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get benchmark run: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM benchmark_results WHERE run_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, id).Scan(&run.ResultCount); err != nil {
		return nil, fmt.Errorf("failed to count benchmark results: %w", err)
	}

	return run, nil
}

// ListRuns returns one page of runs, newest first, plus the unpaged total.
func (r *PostgresRepository) ListRuns(ctx context.Context, filter ListFilter) ([]Run, int, error) {
	where := ""
	var args []interface{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		args = append(args, filter.Status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM benchmark_runs" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count benchmark runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM benchmark_runs` + where +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	offset := (filter.Page - 1) * filter.PerPage

	rows, err := r.db.QueryContext(ctx, query, append(args, filter.PerPage, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list benchmark runs: %w", err)
	}
	defer rows.Close()

	runs, err := collectRuns(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.fillResultCounts(ctx, runs); err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// fillResultCounts stamps each run with its result count in one grouped
// query.
func (r *PostgresRepository) fillResultCounts(ctx context.Context, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}

	query := `
		SELECT run_id, COUNT(*)
		FROM benchmark_results
		WHERE run_id = ANY($1)
		GROUP BY run_id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to count benchmark results: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(runs))
	for rows.Next() {
		var runID string
		var count int
		if err := rows.Scan(&runID, &count); err != nil {
			return fmt.Errorf("failed to scan result count: %w", err)
		}
		counts[runID] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate result counts: %w", err)
	}

	for i := range runs {
		runs[i].ResultCount = counts[runs[i].ID]
	}
	return nil
}

// SetRunStatus moves a run to status, stamping completed_at when given.
func (r *PostgresRepository) SetRunStatus(ctx context.Context, id, status string, completedAt *time.Time) error {
	query := `
		UPDATE benchmark_runs
		SET status = $2, completed_at = COALESCE($3, completed_at), updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, completedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update benchmark run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}

	return nil
}

// InsertResults writes all measured results of a run in one transaction,
// preserving slice order.
func (r *PostgresRepository) InsertResults(ctx context.Context, results []Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO benchmark_results (id, run_id, model_id, ttft_ms, tps,
		                               tps_excluding_ttft, total_latency_ms,
		                               input_tokens, output_tokens,
		                               estimated_cost, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, res := range results {
		if _, err := tx.ExecContext(ctx, query,
			res.ID,
			res.RunID,
			res.ModelID,
			res.TTFTMS,
			res.TPS,
			res.TPSExcludingTTFT,
			res.TotalLatencyMS,
			res.InputTokens,
			res.OutputTokens,
			res.EstimatedCost,
			res.Error,
			res.CreatedAt,
			res.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert benchmark result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit benchmark results: %w", err)
	}

	return nil
}

// ListResults returns a run's results in insertion order with model names
// joined.
func (r *PostgresRepository) ListResults(ctx context.Context, runID string) ([]Result, error) {
	query := `
		SELECT r.id, r.run_id, r.model_id, r.ttft_ms, r.tps, r.tps_excluding_ttft,
		       r.total_latency_ms, r.input_tokens, r.output_tokens, r.estimated_cost,
		       r.error, r.created_at,
		       COALESCE(NULLIF(m.custom_name, ''), m.model_id) AS model_name
		FROM benchmark_results r
		LEFT JOIN models m ON m.id = r.model_id
		WHERE r.run_id = $1
		ORDER BY r.created_at ASC, r.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list benchmark results: %w", err)
	}
	defer rows.Close()

	var items []Result
	for rows.Next() {
		var item Result
		var modelName sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.RunID,
			&item.ModelID,
			&item.TTFTMS,
			&item.TPS,
			&item.TPSExcludingTTFT,
			&item.TotalLatencyMS,
			&item.InputTokens,
			&item.OutputTokens,
			&item.EstimatedCost,
			&item.Error,
			&item.CreatedAt,
			&modelName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benchmark result: %w", err)
		}

		if modelName.Valid && modelName.String != "" {
			name := modelName.String
			item.ModelName = &name
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate benchmark results: %w", err)
	}

	return items, nil
}

// ExportRows returns a run's results shaped for export, with model and
// provider names joined.
func (r *PostgresRepository) ExportRows(ctx context.Context, runID string) ([]ExportRow, error) {
	query := `
		SELECT COALESCE(NULLIF(m.custom_name, ''), m.model_id) AS model_name,
		       p.provider_type,
		       r.ttft_ms, r.tps, r.tps_excluding_ttft, r.total_latency_ms,
		       r.input_tokens, r.output_tokens, r.error, r.created_at
		FROM benchmark_results r
		LEFT JOIN models m ON m.id = r.model_id
		LEFT JOIN provider_accounts p ON p.id = m.provider_account_id
		WHERE r.run_id = $1
		ORDER BY r.created_at ASC, r.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to export benchmark results: %w", err)
	}
	defer rows.Close()

	var items []ExportRow
	for rows.Next() {
		var item ExportRow
		var modelName, providerType sql.NullString

		err := rows.Scan(
			&modelName,
			&providerType,
			&item.TTFTMS,
			&item.TPS,
			&item.TPSExcludingTTFT,
			&item.TotalLatencyMS,
			&item.InputTokens,
			&item.OutputTokens,
			&item.Error,
			&item.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benchmark result: %w", err)
		}

		item.ModelName = modelName.String
		if item.ModelName == "" {
			item.ModelName = "Unknown"
		}
		item.Provider = providerType.String
		if item.Provider == "" {
			item.Provider = "Unknown"
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate benchmark results: %w", err)
	}

	return items, nil
}

// scanner is the shared subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	err := s.Scan(
		&run.ID,
		&run.Name,
		pq.Array(&run.ModelIDs),
		&run.PromptPack,
		&run.Status,
		&run.TriggeredBy,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benchmark run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate benchmark runs: %w", err)
	}
	return runs, nil
}
