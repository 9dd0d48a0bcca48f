// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const modelColumns = `m.id, m.provider_account_id, m.model_id, m.custom_name, m.source,
	       m.enabled_for_monitoring, m.enabled_for_benchmark, m.metadata, m.created_at, m.updated_at`

// Create persists a new model.
func (r *PostgresRepository) Create(ctx context.Context, model *Model) error {
	metadata, err := marshalMetadata(model.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO models (id, provider_account_id, model_id, custom_name, source,
		                    enabled_for_monitoring, enabled_for_benchmark, metadata,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		model.ID,
		model.ProviderAccountID,
		model.ModelID,
		model.CustomName,
		model.Source,
		model.EnabledForMonitoring,
		model.EnabledForBenchmark,
		metadata,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	return nil
}

// Get retrieves a model by ID with the parent provider name joined.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Model, error) {
	query := `
		SELECT ` + modelColumns + `,
		       COALESCE(NULLIF(p.display_name, ''), p.provider_type) AS provider_name
		FROM models m
		LEFT JOIN provider_accounts p ON p.id = m.provider_account_id
		WHERE m.id = $1
	`

	model, err := scanModel(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return model, nil
}

// List retrieves models matching the filter plus the unpaged total.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Model, int, error) {
	where, args := buildModelFilter(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM models m" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count models: %w", err)
	}

	query := `
		SELECT ` + modelColumns + `,
		       COALESCE(NULLIF(p.display_name, ''), p.provider_type) AS provider_name
		FROM models m
		LEFT JOIN provider_accounts p ON p.id = m.provider_account_id
	` + where + fmt.Sprintf(" ORDER BY m.created_at ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, *model)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate models: %w", err)
	}

	return models, total, nil
}

// Update persists a model's mutable fields.
func (r *PostgresRepository) Update(ctx context.Context, model *Model) error {
	query := `
		UPDATE models
		SET custom_name = $2, enabled_for_monitoring = $3, enabled_for_benchmark = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		model.ID,
		model.CustomName,
		model.EnabledForMonitoring,
		model.EnabledForBenchmark,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrModelNotFound
	}

	return nil
}

// ListMonitored retrieves every model flagged for monitoring with its
// provider account attached.
func (r *PostgresRepository) ListMonitored(ctx context.Context) ([]ModelWithProvider, error) {
	query := `
		SELECT ` + modelColumns + `,
		       COALESCE(NULLIF(p.display_name, ''), p.provider_type) AS provider_name,
		       p.provider_type, p.credentials_encrypted
		FROM models m
		JOIN provider_accounts p ON p.id = m.provider_account_id
		WHERE m.enabled_for_monitoring = TRUE
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored models: %w", err)
	}
	defer rows.Close()

	return collectWithProvider(rows)
}

// GetWithProvider retrieves the given models with their provider accounts
// attached.
func (r *PostgresRepository) GetWithProvider(ctx context.Context, ids []string) ([]ModelWithProvider, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + modelColumns + `,
		       COALESCE(NULLIF(p.display_name, ''), p.provider_type) AS provider_name,
		       p.provider_type, p.credentials_encrypted
		FROM models m
		JOIN provider_accounts p ON p.id = m.provider_account_id
		WHERE m.id = ANY($1)
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}
	defer rows.Close()

	return collectWithProvider(rows)
}

// buildModelFilter translates a ListFilter into a WHERE clause and its
// positional arguments.
func buildModelFilter(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.ProviderID != "" {
		args = append(args, filter.ProviderID)
		conditions = append(conditions, fmt.Sprintf("m.provider_account_id = $%d", len(args)))
	}
	if filter.EnabledForMonitoring != nil {
		args = append(args, *filter.EnabledForMonitoring)
		conditions = append(conditions, fmt.Sprintf("m.enabled_for_monitoring = $%d", len(args)))
	}
	if filter.EnabledForBenchmark != nil {
		args = append(args, *filter.EnabledForBenchmark)
		conditions = append(conditions, fmt.Sprintf("m.enabled_for_benchmark = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(LOWER(m.model_id) LIKE $%d OR LOWER(COALESCE(m.custom_name, '')) LIKE $%d)", n, n))
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

func scanModel(row scanner) (*Model, error) {
	var model Model
	var metadataRaw []byte
	var providerName sql.NullString

	err := row.Scan(
		&model.ID,
		&model.ProviderAccountID,
		&model.ModelID,
		&model.CustomName,
		&model.Source,
		&model.EnabledForMonitoring,
		&model.EnabledForBenchmark,
		&metadataRaw,
		&model.CreatedAt,
		&model.UpdatedAt,
		&providerName,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalMetadata(metadataRaw, &model); err != nil {
		return nil, err
	}
	model.ProviderName = providerName.String

	return &model, nil
}

func collectWithProvider(rows *sql.Rows) ([]ModelWithProvider, error) {
	var models []ModelWithProvider
	for rows.Next() {
		var m ModelWithProvider
		var metadataRaw []byte
		var providerName sql.NullString

		err := rows.Scan(
			&m.ID,
			&m.ProviderAccountID,
			&m.ModelID,
			&m.CustomName,
			&m.Source,
			&m.EnabledForMonitoring,
			&m.EnabledForBenchmark,
			&metadataRaw,
			&m.CreatedAt,
			&m.UpdatedAt,
			&providerName,
			&m.ProviderType,
			&m.EncryptedCredentials,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}

		if err := unmarshalMetadata(metadataRaw, &m.Model); err != nil {
			return nil, err
		}
		m.ProviderName = providerName.String
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate models: %w", err)
	}

	return models, nil
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return raw, nil
}

func unmarshalMetadata(raw []byte, model *Model) error {
	if len(raw) == 0 {
		model.Metadata = map[string]interface{}{}
		return nil
	}
	if err := json.Unmarshal(raw, &model.Metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
