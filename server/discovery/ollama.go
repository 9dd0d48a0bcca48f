// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"arguslm/platform/server/invoke"
	"arguslm/platform/shared/logger"
)

// DefaultOllamaURL is the local Ollama server address.
const DefaultOllamaURL = "http://localhost:11434"

// ollamaTimeout is shorter than the hosted-API default; the server is
// local and either answers immediately or is not running.
const ollamaTimeout = 10 * time.Second

// OllamaSource discovers locally installed models through Ollama's
// GET /api/tags endpoint. No auth.
type OllamaSource struct {
	client invoke.HTTPClient
	log    *logger.Logger
}

// NewOllamaSource creates the adapter; a nil client uses a default with a
// 10 s timeout.
func NewOllamaSource(client invoke.HTTPClient) *OllamaSource {
	return &OllamaSource{
		client: httpClientOr(client, ollamaTimeout),
		log:    logger.New("discovery"),
	}
}

// SupportsDiscovery reports live discovery.
func (s *OllamaSource) SupportsDiscovery() bool { return true }

// OllamaTagsURL returns the /api/tags URL for a base_url credential,
// falling back to the local default. Shared with the connection test.
func OllamaTagsURL(credentials map[string]string) string {
	base := credentials["base_url"]
	if base == "" {
		base = DefaultOllamaURL
	}
	return strings.TrimRight(base, "/") + "/api/tags"
}

// ListModels fetches installed models from /api/tags.
func (s *OllamaSource) ListModels(ctx context.Context, account invoke.Target) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, OllamaTagsURL(account.Credentials), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach Ollama server: %w", err)
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
			Name       string `json:"name"`
			Size       int64  `json:"size"`
			Digest     string `json:"digest"`
			ModifiedAt string `json:"modified_at"`
			Details    struct {
				Format            string   `json:"format"`
				Family            string   `json:"family"`
				Families          []string `json:"families"`
				ParameterSize     string   `json:"parameter_size"`
				QuantizationLevel string   `json:"quantization_level"`
			} `json:"details"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	models := make([]Descriptor, 0, len(payload.Models))
	for _, entry := range payload.Models {
		if entry.Name == "" {
			continue
		}
		models = append(models, Descriptor{
			ID:           entry.Name,
			ProviderType: invoke.KindOllama,
			Metadata: map[string]interface{}{
				"size":               entry.Size,
				"digest":             entry.Digest,
				"modified_at":        entry.ModifiedAt,
				"format":             entry.Details.Format,
				"family":             entry.Details.Family,
				"families":           entry.Details.Families,
				"parameter_size":     entry.Details.ParameterSize,
				"quantization_level": entry.Details.QuantizationLevel,
			},
		})
	}

	s.log.Info("Discovered models", map[string]interface{}{
		"provider_type": invoke.KindOllama,
		"count":         len(models),
	})
	return models, nil
}
