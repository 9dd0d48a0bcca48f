// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import "errors"

var (
	// ErrProviderNotFound is returned when a provider account is not found
	ErrProviderNotFound = errors.New("provider account not found")

	// ErrModelHasHistory is returned when deleting a provider whose models have benchmark results
	ErrModelHasHistory = errors.New("cannot delete provider with models that have benchmark history")

	// ErrUnknownProviderType is returned for a provider_type outside the closed set
	ErrUnknownProviderType = errors.New("unknown provider type")

	// ErrDisplayNameRequired is returned when display_name is missing or blank
	ErrDisplayNameRequired = errors.New("display name is required")

	// ErrCredentialsRequired is returned when the credentials object is missing
	ErrCredentialsRequired = errors.New("credentials are required")

	// ErrInvalidCiphertext is returned when a stored credential blob cannot be decrypted
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrDiscoveryUnsupported is returned when a provider kind has no discovery adapter
	ErrDiscoveryUnsupported = errors.New("model discovery not supported for provider type")
)
