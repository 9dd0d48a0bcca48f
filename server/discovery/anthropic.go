// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"arguslm/platform/server/invoke"
	"arguslm/platform/shared/logger"
)

const (
	anthropicAPIBase = "https://api.anthropic.com"

	// anthropicAPIVersion is required on every Anthropic API call.
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicSource discovers Claude models through Anthropic's
// GET /v1/models endpoint. Auth is the x-api-key header.
type AnthropicSource struct {
	client invoke.HTTPClient
	log    *logger.Logger
}

// NewAnthropicSource creates the adapter; a nil client uses a default with
// a 30 s timeout.
func NewAnthropicSource(client invoke.HTTPClient) *AnthropicSource {
	return &AnthropicSource{
		client: httpClientOr(client, defaultTimeout),
		log:    logger.New("discovery"),
	}
}

// SupportsDiscovery reports live discovery.
func (s *AnthropicSource) SupportsDiscovery() bool { return true }

// ListModels fetches the model list from the Anthropic API.
func (s *AnthropicSource) ListModels(ctx context.Context, account invoke.Target) ([]Descriptor, error) {
	key := account.Credentials["api_key"]
	if key == "" {
		return nil, fmt.Errorf("anthropic discovery requires an api_key credential")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, anthropicAPIBase+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model discovery request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model discovery returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	models := make([]Descriptor, 0, len(payload.Data))
	for _, entry := range payload.Data {
		id, _ := entry["id"].(string)
		if id == "" {
			continue
		}
		metadata := make(map[string]interface{})
		for k, v := range entry {
			switch k {
			case "id", "created_at", "type":
			default:
				metadata[k] = v
			}
		}
		models = append(models, Descriptor{
			ID:           id,
			ProviderType: account.Kind,
			OwnedBy:      "anthropic",
			Metadata:     metadata,
		})
	}

	s.log.Info("Discovered models", map[string]interface{}{
		"provider_type": account.Kind,
		"count":         len(models),
	})
	return models, nil
}
