// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package catalog

import "errors"

var (
	// ErrModelNotFound is returned when a model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInvalidModelID is returned when a manual model_id does not match
	// the allowed shape (alphanumerics, hyphens, underscores).
	ErrInvalidModelID = errors.New("invalid model_id format")

	// ErrProviderRequired is returned when a manual model is created
	// without a parent provider account.
	ErrProviderRequired = errors.New("provider_account_id is required")
)
