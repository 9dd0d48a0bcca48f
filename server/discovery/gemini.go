// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"arguslm/platform/server/invoke"
	"arguslm/platform/shared/logger"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com"

// GeminiSource discovers models through the Gemini API's GET
// /v1beta/models endpoint. Auth is the key query parameter.
type GeminiSource struct {
	client invoke.HTTPClient
	log    *logger.Logger
}

// NewGeminiSource creates the adapter; a nil client uses a default with a
// 30 s timeout.
func NewGeminiSource(client invoke.HTTPClient) *GeminiSource {
	return &GeminiSource{
		client: httpClientOr(client, defaultTimeout),
		log:    logger.New("discovery"),
	}
}

// SupportsDiscovery reports live discovery.
func (s *GeminiSource) SupportsDiscovery() bool { return true }

// ListModels fetches the model list from the Gemini API.
func (s *GeminiSource) ListModels(ctx context.Context, account invoke.Target) ([]Descriptor, error) {
	key := account.Credentials["api_key"]
	if key == "" {
		return nil, fmt.Errorf("gemini discovery requires an api_key credential")
	}

	endpoint := geminiAPIBase + "/v1beta/models?key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}

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
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			InputTokenLimit            int      `json:"inputTokenLimit"`
			OutputTokenLimit           int      `json:"outputTokenLimit"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	models := make([]Descriptor, 0, len(payload.Models))
	for _, entry := range payload.Models {
		// Model names arrive as "models/gemini-1.5-flash".
		id := strings.TrimPrefix(entry.Name, "models/")
		if id == "" {
			continue
		}
		models = append(models, Descriptor{
			ID:           id,
			ProviderType: account.Kind,
			OwnedBy:      "google",
			Metadata: map[string]interface{}{
				"display_name":                 entry.DisplayName,
				"description":                  entry.Description,
				"input_token_limit":            entry.InputTokenLimit,
				"output_token_limit":           entry.OutputTokenLimit,
				"supported_generation_methods": entry.SupportedGenerationMethods,
			},
		})
	}

	s.log.Info("Discovered models", map[string]interface{}{
		"provider_type": account.Kind,
		"count":         len(models),
	})
	return models, nil
}
