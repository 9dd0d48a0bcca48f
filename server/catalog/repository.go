// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package catalog

import "context"

// Repository defines the persistence interface for models.
type Repository interface {
	// Create persists a new model.
	Create(ctx context.Context, model *Model) error

	// Get retrieves a model by ID with the parent provider name joined.
	Get(ctx context.Context, id string) (*Model, error)

	// List retrieves models matching the filter plus the unpaged total,
	// oldest first.
	List(ctx context.Context, filter ListFilter) ([]Model, int, error)

	// Update persists a model's mutable fields (custom name and flags).
	Update(ctx context.Context, model *Model) error

	// ListMonitored retrieves every model flagged for monitoring with its
	// provider account attached.
	ListMonitored(ctx context.Context) ([]ModelWithProvider, error)

	// GetWithProvider retrieves the given models with their provider
	// accounts attached. Unknown ids are simply absent from the result.
	GetWithProvider(ctx context.Context, ids []string) ([]ModelWithProvider, error)
}
