// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package discovery queries provider APIs for their available models.
// Providers with a listing endpoint get a live adapter; providers without
// one get a curated registry. Either way the caller receives Descriptors
// and decides what to persist.
package discovery

import (
	"context"
	"net/http"
	"time"

	"arguslm/platform/server/invoke"
)

// defaultTimeout bounds one discovery request against a hosted API.
const defaultTimeout = 30 * time.Second

// Descriptor describes one discovered model. Metadata carries the
// provider-specific fields that have no column of their own.
type Descriptor struct {
	ID           string                 `json:"id"`
	ProviderType string                 `json:"provider_type"`
	OwnedBy      string                 `json:"owned_by,omitempty"`
	Created      int64                  `json:"created,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Source lists the models a provider account exposes.
type Source interface {
	// ListModels queries the provider for its available models. The
	// account's Kind and Credentials select the endpoint and auth; the
	// Model field is unused.
	ListModels(ctx context.Context, account invoke.Target) ([]Descriptor, error)

	// SupportsDiscovery reports whether the adapter performs a live API
	// call (true) or serves a curated registry (false).
	SupportsDiscovery() bool
}

// openAIWireKinds lists the kinds discovered through the OpenAI-style
// GET /models endpoint.
var openAIWireKinds = map[string]bool{
	invoke.KindOpenAI:       true,
	invoke.KindOpenRouter:   true,
	invoke.KindTogether:     true,
	invoke.KindGroq:         true,
	invoke.KindLMStudio:     true,
	invoke.KindXAI:          true,
	invoke.KindFireworks:    true,
	invoke.KindDeepSeek:     true,
	invoke.KindCustomOpenAI: true,
}

// SourceFor returns the discovery adapter for kind, or nil when the kind
// has no discovery path.
func SourceFor(kind string) Source {
	switch {
	case openAIWireKinds[kind]:
		return NewOpenAISource(nil)
	case kind == invoke.KindAnthropic:
		return NewAnthropicSource(nil)
	case kind == invoke.KindOllama:
		return NewOllamaSource(nil)
	case kind == invoke.KindGemini:
		return NewGeminiSource(nil)
	default:
		if src := NewStaticSource(kind); src != nil {
			return src
		}
		return nil
	}
}

// httpClientOr returns client, or a default with the given timeout.
func httpClientOr(client invoke.HTTPClient, timeout time.Duration) invoke.HTTPClient {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: timeout}
}
