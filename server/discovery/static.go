// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"

	"arguslm/platform/server/invoke"
)

// curatedEntry is one row of a static registry.
type curatedEntry struct {
	id      string
	ownedBy string
}

// Curated registries for providers whose APIs either have no model-listing
// endpoint or list base models that differ from what the account can
// invoke. Kept in sync with each provider's published model pages.
var (
	mistralModels = []curatedEntry{
		{"mistral-large-latest", "mistral"},
		{"mistral-medium-latest", "mistral"},
		{"mistral-small-latest", "mistral"},
		{"open-mistral-nemo", "mistral"},
		{"codestral-latest", "mistral"},
	}

	vertexModels = []curatedEntry{
		{"gemini-2.0-flash-001", "google"},
		{"gemini-2.0-pro-exp-02-05", "google"},
		{"gemini-1.5-pro-002", "google"},
		{"gemini-1.5-flash-002", "google"},
		{"gemini-1.0-pro-002", "google"},
		{"claude-3-5-sonnet-v2@20241022", "anthropic"},
		{"claude-3-5-haiku@20241022", "anthropic"},
		{"claude-3-opus@20240229", "anthropic"},
		{"claude-3-haiku@20240307", "anthropic"},
		{"llama-3.2-90b-vision-instruct-maas", "meta"},
		{"llama-3.1-405b-instruct-maas", "meta"},
		{"mistral-large@2407", "mistral"},
		{"mistral-nemo@2407", "mistral"},
	}

	bedrockModels = []curatedEntry{
		{"anthropic.claude-opus-4-5-20251101-v1:0", "anthropic"},
		{"anthropic.claude-sonnet-4-5-20250929-v1:0", "anthropic"},
		{"anthropic.claude-haiku-4-5-20251001-v1:0", "anthropic"},
		{"anthropic.claude-opus-4-1-20250805-v1:0", "anthropic"},
		{"anthropic.claude-sonnet-4-20250514-v1:0", "anthropic"},
		{"anthropic.claude-3-5-haiku-20241022-v1:0", "anthropic"},
		{"anthropic.claude-3-haiku-20240307-v1:0", "anthropic"},
		{"meta.llama4-maverick-17b-instruct-v1:0", "meta"},
		{"meta.llama4-scout-17b-instruct-v1:0", "meta"},
		{"meta.llama3-3-70b-instruct-v1:0", "meta"},
		{"meta.llama3-1-405b-instruct-v1:0", "meta"},
		{"meta.llama3-1-70b-instruct-v1:0", "meta"},
		{"meta.llama3-1-8b-instruct-v1:0", "meta"},
		{"mistral.mistral-large-2407-v1:0", "mistral"},
		{"mistral.mistral-small-2402-v1:0", "mistral"},
		{"mistral.mixtral-8x7b-instruct-v0:1", "mistral"},
		{"amazon.titan-text-premier-v1:0", "amazon"},
		{"amazon.titan-text-express-v1", "amazon"},
		{"amazon.titan-text-lite-v1", "amazon"},
	}

	// Azure lists deployable base models, not the account's deployments,
	// so discovery serves the curated base set and users add models under
	// their deployment names.
	azureModels = []curatedEntry{
		{"gpt-4o", "openai"},
		{"gpt-4o-mini", "openai"},
		{"gpt-4-turbo", "openai"},
		{"gpt-4", "openai"},
		{"gpt-35-turbo", "openai"},
		{"o1-preview", "openai"},
		{"o1-mini", "openai"},
	}

	staticRegistries = map[string][]curatedEntry{
		invoke.KindMistral: mistralModels,
		invoke.KindVertex:  vertexModels,
		invoke.KindBedrock: bedrockModels,
		invoke.KindAzure:   azureModels,
	}
)

// StaticSource serves a curated registry for one provider kind.
type StaticSource struct {
	kind    string
	entries []curatedEntry
}

// NewStaticSource returns the curated source for kind, or nil when no
// registry exists for it.
func NewStaticSource(kind string) *StaticSource {
	entries, ok := staticRegistries[kind]
	if !ok {
		return nil
	}
	return &StaticSource{kind: kind, entries: entries}
}

// SupportsDiscovery reports a curated registry, not a live call.
func (s *StaticSource) SupportsDiscovery() bool { return false }

// ListModels returns the curated registry. The account's credentials are
// not needed.
func (s *StaticSource) ListModels(ctx context.Context, account invoke.Target) ([]Descriptor, error) {
	models := make([]Descriptor, 0, len(s.entries))
	for _, entry := range s.entries {
		models = append(models, Descriptor{
			ID:           entry.id,
			ProviderType: s.kind,
			OwnedBy:      entry.ownedBy,
			Metadata:     map[string]interface{}{},
		})
	}
	return models, nil
}
