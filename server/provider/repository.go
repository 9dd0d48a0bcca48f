// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import "context"

// Repository defines storage operations for provider accounts. Deleting an
// account cascades to its models and their history, so Delete callers must
// check HasBenchmarkHistory first.
type Repository interface {
	// Create persists a new account.
	Create(ctx context.Context, account *Account) error

	// Get retrieves an account by id; ErrProviderNotFound if absent.
	Get(ctx context.Context, id string) (*Account, error)

	// List returns all accounts ordered by creation time, oldest first,
	// plus the total count.
	List(ctx context.Context) ([]Account, int, error)

	// Update persists display name, credential blob, and enabled flag.
	Update(ctx context.Context, account *Account) error

	// Delete removes an account; ErrProviderNotFound if absent.
	Delete(ctx context.Context, id string) error

	// HasBenchmarkHistory reports whether any of the account's models
	// has benchmark results.
	HasBenchmarkHistory(ctx context.Context, id string) (bool, error)

	// ExistingModelIDs returns the provider-visible model ids already
	// registered for the account.
	ExistingModelIDs(ctx context.Context, providerID string) (map[string]bool, error)

	// InsertDiscoveredModels registers models found by discovery and
	// returns how many were inserted.
	InsertDiscoveredModels(ctx context.Context, providerID string, models []DiscoveredModel) (int, error)
}
