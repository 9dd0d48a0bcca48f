// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package provider manages provider accounts: encrypted credential
// bundles, account lifecycle, connection tests, and model discovery for
// each configured LLM endpoint.
package provider

import (
	"fmt"
	"strings"
	"time"

	"arguslm/platform/server/invoke"
)

// Account is one configured provider endpoint plus its sealed credential
// bundle. The bundle is decrypted only at the call site that needs it and
// never leaves the process.
type Account struct {
	ID                   string    `json:"id"`
	ProviderType         string    `json:"provider_type"`
	DisplayName          string    `json:"display_name"`
	EncryptedCredentials string    `json:"-"`
	Enabled              bool      `json:"enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AccountResponse is the wire shape for one provider account. base_url and
// region are endpoint addressing, not secrets, so they are surfaced; the
// rest of the credential bundle never appears in any response.
type AccountResponse struct {
	ID           string    `json:"id"`
	ProviderType string    `json:"provider_type"`
	DisplayName  string    `json:"display_name"`
	Enabled      bool      `json:"enabled"`
	BaseURL      *string   `json:"base_url"`
	Region       *string   `json:"region"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateAccountRequest is the request body for creating a provider account.
type CreateAccountRequest struct {
	ProviderType string            `json:"provider_type"`
	DisplayName  string            `json:"display_name"`
	Credentials  map[string]string `json:"credentials"`
}

// Validate checks the closed provider-type set and required fields.
func (r CreateAccountRequest) Validate() error {
	if !invoke.KnownKind(r.ProviderType) {
		return fmt.Errorf("%w: %q", ErrUnknownProviderType, r.ProviderType)
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		return ErrDisplayNameRequired
	}
	if r.Credentials == nil {
		return ErrCredentialsRequired
	}
	return nil
}

// UpdateAccountRequest carries a partial update. Pointer fields
// distinguish absent from zero-valued; a non-nil Credentials map replaces
// the whole bundle.
type UpdateAccountRequest struct {
	DisplayName *string           `json:"display_name"`
	Credentials map[string]string `json:"credentials"`
	Enabled     *bool             `json:"enabled"`
}

// TestConnectionRequest carries not-yet-saved credentials for a probe.
// There is no display name: operators test credentials before naming
// the account.
type TestConnectionRequest struct {
	ProviderType string            `json:"provider_type"`
	Credentials  map[string]string `json:"credentials"`
}

// Validate checks the closed provider-type set and required fields.
func (r TestConnectionRequest) Validate() error {
	if !invoke.KnownKind(r.ProviderType) {
		return fmt.Errorf("%w: %q", ErrUnknownProviderType, r.ProviderType)
	}
	if r.Credentials == nil {
		return ErrCredentialsRequired
	}
	return nil
}

// ConnectionTestResult is the outcome of a connection test. Failures are
// reported in-band with success=false, not as HTTP errors.
type ConnectionTestResult struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	LatencyMS float64                `json:"latency_ms"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// RefreshResult is the outcome of a refresh-models run.
type RefreshResult struct {
	Success          bool   `json:"success"`
	ModelsDiscovered int    `json:"models_discovered"`
	Message          string `json:"message"`
}

// DiscoveredModel is a model row to register from a refresh-models run.
type DiscoveredModel struct {
	ModelID  string
	Metadata map[string]interface{}
}
