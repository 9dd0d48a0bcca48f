// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package catalog manages the model inventory: rows discovered from
// provider listings or entered manually, the per-model monitoring and
// benchmark flags, and the lookups the checker and benchmark engine
// run against.
package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// modelIDPattern is the shape every manually entered model_id must match.
// Discovered ids are taken verbatim from the provider and are exempt.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Model is one callable model under a provider account. ProviderName is
// populated on reads that join the parent account; it is never stored.
type Model struct {
	ID                   string                 `json:"id"`
	ProviderAccountID    string                 `json:"provider_account_id"`
	ProviderName         string                 `json:"provider_name,omitempty"`
	ModelID              string                 `json:"model_id"`
	CustomName           *string                `json:"custom_name"`
	Source               string                 `json:"source"`
	EnabledForMonitoring bool                   `json:"enabled_for_monitoring"`
	EnabledForBenchmark  bool                   `json:"enabled_for_benchmark"`
	Metadata             map[string]interface{} `json:"model_metadata"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"-"`
}

// DisplayName returns the operator-facing name: the custom name when set,
// otherwise the provider's model identifier.
func (m *Model) DisplayName() string {
	if m.CustomName != nil && *m.CustomName != "" {
		return *m.CustomName
	}
	return m.ModelID
}

// ModelWithProvider is a model row with the parent account fields the
// probe paths need: the provider kind for routing and the sealed
// credential blob for the caller to unseal.
type ModelWithProvider struct {
	Model
	ProviderType         string
	EncryptedCredentials string
}

// CreateModelRequest is the request body for manually registering a model.
type CreateModelRequest struct {
	ProviderAccountID string                 `json:"provider_account_id"`
	ModelID           string                 `json:"model_id"`
	CustomName        *string                `json:"custom_name"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// Validate checks required fields and the model_id shape.
func (r CreateModelRequest) Validate() error {
	if r.ProviderAccountID == "" {
		return ErrProviderRequired
	}
	if !modelIDPattern.MatchString(r.ModelID) {
		return fmt.Errorf("%w: %q", ErrInvalidModelID, r.ModelID)
	}
	return nil
}

// NullableString distinguishes an absent JSON field from an explicit
// null. Set reports whether the key appeared at all; Value is nil for
// an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// UpdateModelRequest carries a partial update. The provider's model_id
// is immutable; only the display name and the two flags can change.
// CustomName set to explicit null clears the name.
type UpdateModelRequest struct {
	CustomName           NullableString `json:"custom_name"`
	EnabledForMonitoring *bool          `json:"enabled_for_monitoring"`
	EnabledForBenchmark  *bool          `json:"enabled_for_benchmark"`
}

// ListFilter narrows a model listing. Zero values mean "no filter".
type ListFilter struct {
	ProviderID           string
	EnabledForMonitoring *bool
	EnabledForBenchmark  *bool
	Search               string
	Limit                int
	Offset               int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// normalize clamps pagination to the documented bounds.
func (f *ListFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResponse is the paginated model listing envelope.
type ListResponse struct {
	Items  []Model `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
