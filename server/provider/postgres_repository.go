// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists a new provider account
func (r *PostgresRepository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO provider_accounts (
			id, provider_type, display_name, credentials_encrypted,
			enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.ProviderType, account.DisplayName,
		account.EncryptedCredentials, account.Enabled,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create provider account: %w", err)
	}

	return nil
}

// Get retrieves a provider account by ID
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Account, error) {
	query := `
		SELECT id, provider_type, display_name, credentials_encrypted,
		       enabled, created_at, updated_at
		FROM provider_accounts
		WHERE id = $1
	`

	var account Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.ProviderType, &account.DisplayName,
		&account.EncryptedCredentials, &account.Enabled,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider account: %w", err)
	}

	return &account, nil
}

// List returns all provider accounts, oldest first
func (r *PostgresRepository) List(ctx context.Context) ([]Account, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM provider_accounts").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count provider accounts: %w", err)
	}

	query := `
		SELECT id, provider_type, display_name, credentials_encrypted,
		       enabled, created_at, updated_at
		FROM provider_accounts
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list provider accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var account Account
		if err := rows.Scan(
			&account.ID, &account.ProviderType, &account.DisplayName,
			&account.EncryptedCredentials, &account.Enabled,
			&account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan provider account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, total, nil
}

// Update persists mutable account fields
func (r *PostgresRepository) Update(ctx context.Context, account *Account) error {
	query := `
		UPDATE provider_accounts SET
			display_name = $2, credentials_encrypted = $3, enabled = $4,
			updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		account.ID, account.DisplayName, account.EncryptedCredentials,
		account.Enabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update provider account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrProviderNotFound
	}

	return nil
}

// Delete removes a provider account; models and their history cascade
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM provider_accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrProviderNotFound
	}

	return nil
}

// HasBenchmarkHistory reports whether any model under the account has
// benchmark results
func (r *PostgresRepository) HasBenchmarkHistory(ctx context.Context, id string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM benchmark_results br
			JOIN models m ON m.id = br.model_id
			WHERE m.provider_account_id = $1
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check benchmark history: %w", err)
	}

	return exists, nil
}

// ExistingModelIDs returns the model ids already registered for an account
func (r *PostgresRepository) ExistingModelIDs(ctx context.Context, providerID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT model_id FROM models WHERE provider_account_id = $1", providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing models: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan model id: %w", err)
		}
		ids[id] = true
	}

	return ids, nil
}

// InsertDiscoveredModels registers discovered models. The unique
// constraint on (provider_account_id, model_id) makes concurrent refreshes
// safe; conflicting rows are skipped and not counted.
func (r *PostgresRepository) InsertDiscoveredModels(ctx context.Context, providerID string, models []DiscoveredModel) (int, error) {
	if len(models) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO models (
			id, provider_account_id, model_id, source,
			enabled_for_monitoring, enabled_for_benchmark, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, 'discovered', FALSE, TRUE, $4, $5, $5)
		ON CONFLICT (provider_account_id, model_id) DO NOTHING
	`

	inserted := 0
	now := time.Now().UTC()
	for _, m := range models {
		metadata := []byte("{}")
		if m.Metadata != nil {
			metadata, err = json.Marshal(m.Metadata)
			if err != nil {
				return 0, fmt.Errorf("failed to marshal model metadata: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, query,
			uuid.New().String(), providerID, m.ModelID, metadata, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert discovered model: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check affected rows: %w", err)
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit discovered models: %w", err)
	}

	return inserted, nil
}
