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

// OpenAISource discovers models through the GET /models endpoint shared by
// OpenAI and every OpenAI-compatible host. Local servers run without auth,
// so the Authorization header is only sent when a key is configured.
type OpenAISource struct {
	client invoke.HTTPClient
	log    *logger.Logger
}

// NewOpenAISource creates the adapter; a nil client uses a default with a
// 30 s timeout.
func NewOpenAISource(client invoke.HTTPClient) *OpenAISource {
	return &OpenAISource{
		client: httpClientOr(client, defaultTimeout),
		log:    logger.New("discovery"),
	}
}

// SupportsDiscovery reports live discovery.
func (s *OpenAISource) SupportsDiscovery() bool { return true }

// ListModels fetches the model list from {base}/models.
func (s *OpenAISource) ListModels(ctx context.Context, account invoke.Target) ([]Descriptor, error) {
	base, err := invoke.BaseURLFor(account)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}
	if key := account.Credentials["api_key"]; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
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
		ownedBy, _ := entry["owned_by"].(string)
		var created int64
		if c, ok := entry["created"].(float64); ok {
			created = int64(c)
		}
		metadata := make(map[string]interface{})
		for k, v := range entry {
			switch k {
			case "id", "owned_by", "created", "object":
			default:
				metadata[k] = v
			}
		}
		models = append(models, Descriptor{
			ID:           id,
			ProviderType: account.Kind,
			OwnedBy:      ownedBy,
			Created:      created,
			Metadata:     metadata,
		})
	}

	s.log.Info("Discovered models", map[string]interface{}{
		"provider_type": account.Kind,
		"count":         len(models),
	})
	return models, nil
}
