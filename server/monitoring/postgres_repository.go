// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"arguslm/platform/server/promptpack"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetConfig returns the singleton configuration, creating it with defaults
// on first read.
func (r *PostgresRepository) GetConfig(ctx context.Context) (*Config, error) {
	query := `
		SELECT id, interval_minutes, prompt_pack, enabled, last_run_at, created_at, updated_at
		FROM monitoring_configs
		ORDER BY created_at ASC
		LIMIT 1
	`

	cfg, err := scanConfig(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return r.createDefaultConfig(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitoring config: %w", err)
	}

	return cfg, nil
}

// createDefaultConfig inserts the default configuration row.
func (r *PostgresRepository) createDefaultConfig(ctx context.Context) (*Config, error) {
	now := time.Now().UTC()
	cfg := &Config{
		ID:              uuid.New().String(),
		IntervalMinutes: DefaultIntervalMinutes,
		PromptPack:      promptpack.DefaultPackID,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	query := `
		INSERT INTO monitoring_configs (id, interval_minutes, prompt_pack, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.IntervalMinutes,
		cfg.PromptPack,
		cfg.Enabled,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create monitoring config: %w", err)
	}

	return cfg, nil
}

// UpdateConfig persists interval, prompt pack, and enabled flag.
func (r *PostgresRepository) UpdateConfig(ctx context.Context, cfg *Config) error {
	query := `
		UPDATE monitoring_configs
		SET interval_minutes = $2, prompt_pack = $3, enabled = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.IntervalMinutes,
		cfg.PromptPack,
		cfg.Enabled,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update monitoring config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConfigNotFound
	}

	return nil
}

// TouchLastRun stamps the configuration with the completion time of a
// monitoring tick.
func (r *PostgresRepository) TouchLastRun(ctx context.Context, configID string, at time.Time) error {
	query := `
		UPDATE monitoring_configs
		SET last_run_at = $2, updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, configID, at)
	if err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConfigNotFound
	}

	return nil
}

// InsertChecks writes a batch of uptime checks in one transaction.
func (r *PostgresRepository) InsertChecks(ctx context.Context, checks []Check) error {
	if len(checks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO uptime_checks (id, model_id, status, latency_ms, ttft_ms, tps,
		                           output_tokens, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, check := range checks {
		if _, err := tx.ExecContext(ctx, query,
			check.ID,
			check.ModelID,
			check.Status,
			check.LatencyMS,
			check.TTFTMS,
			check.TPS,
			check.OutputTokens,
			check.Error,
			check.CreatedAt,
			check.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert uptime check: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit uptime checks: %w", err)
	}

	return nil
}

// ListChecks returns one page of history rows, newest first, plus the
// unpaged total.
func (r *PostgresRepository) ListChecks(ctx context.Context, filter HistoryFilter) ([]HistoryRow, int, error) {
	where, args := buildCheckFilter(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM uptime_checks c LEFT JOIN models m ON m.id = c.model_id" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count uptime checks: %w", err)
	}

	query := `
		SELECT c.id, c.model_id, c.status, c.latency_ms, c.error, c.created_at,
		       COALESCE(NULLIF(m.custom_name, ''), m.model_id) AS model_name
		FROM uptime_checks c
		LEFT JOIN models m ON m.id = c.model_id
	` + where + fmt.Sprintf(" ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list uptime checks: %w", err)
	}
	defer rows.Close()

	var items []HistoryRow
	for rows.Next() {
		var item HistoryRow
		var modelName sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.ModelID,
			&item.Status,
			&item.LatencyMS,
			&item.Error,
			&item.CreatedAt,
			&modelName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan uptime check: %w", err)
		}

		item.ModelName = modelName.String
		if item.ModelName == "" {
			item.ModelName = "Unknown"
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate uptime checks: %w", err)
	}

	return items, total, nil
}

// ExportChecks returns every row matching the filter, newest first, with
// model and provider names joined.
func (r *PostgresRepository) ExportChecks(ctx context.Context, filter HistoryFilter) ([]ExportRow, error) {
	where, args := buildCheckFilter(filter)

	query := `
		SELECT COALESCE(NULLIF(m.custom_name, ''), m.model_id) AS model_name,
		       p.provider_type,
		       c.status, c.latency_ms, c.error, c.created_at
		FROM uptime_checks c
		LEFT JOIN models m ON m.id = c.model_id
		LEFT JOIN provider_accounts p ON p.id = m.provider_account_id
	` + where + " ORDER BY c.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to export uptime checks: %w", err)
	}
	defer rows.Close()

	var items []ExportRow
	for rows.Next() {
		var item ExportRow
		var modelName, providerType sql.NullString

		err := rows.Scan(
			&modelName,
			&providerType,
			&item.Status,
			&item.LatencyMS,
			&item.Error,
			&item.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan uptime check: %w", err)
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
		return nil, fmt.Errorf("failed to iterate uptime checks: %w", err)
	}

	return items, nil
}

// buildCheckFilter translates a HistoryFilter into a WHERE clause and its
// positional arguments.
func buildCheckFilter(filter HistoryFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.ModelID != "" {
		args = append(args, filter.ModelID)
		conditions = append(conditions, fmt.Sprintf("c.model_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("c.created_at >= $%d", len(args)))
	}
	if filter.EnabledOnly {
		conditions = append(conditions, "m.enabled_for_monitoring = TRUE")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// scanner is the shared subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row scanner) (*Config, error) {
	var cfg Config

	err := row.Scan(
		&cfg.ID,
		&cfg.IntervalMinutes,
		&cfg.PromptPack,
		&cfg.Enabled,
		&cfg.LastRunAt,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
