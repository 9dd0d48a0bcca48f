// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"arguslm/platform/server/invoke"
)

const anthropicModelsBody = `{
	"data": [
		{"type": "model", "id": "claude-sonnet-4-5-20250929", "display_name": "Claude Sonnet 4.5", "created_at": "2025-09-29T00:00:00Z"},
		{"type": "model", "id": "claude-3-haiku-20240307", "display_name": "Claude 3 Haiku", "created_at": "2024-03-07T00:00:00Z"}
	],
	"has_more": false
}`

func TestAnthropicSourceListModels(t *testing.T) {
	client := new(MockHTTPClient)
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.String() == "https://api.anthropic.com/v1/models" &&
			req.Header.Get("x-api-key") == "sk-ant-test" &&
			req.Header.Get("anthropic-version") == "2023-06-01"
	})).Return(jsonResponse(200, anthropicModelsBody), nil)

	src := NewAnthropicSource(client)
	models, err := src.ListModels(context.Background(), invoke.Target{
		Kind:        invoke.KindAnthropic,
		Credentials: map[string]string{"api_key": "sk-ant-test"},
	})

	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "claude-sonnet-4-5-20250929", models[0].ID)
	assert.Equal(t, "anthropic", models[0].OwnedBy)
	assert.Equal(t, "Claude Sonnet 4.5", models[0].Metadata["display_name"])
	assert.NotContains(t, models[0].Metadata, "type")
	client.AssertExpectations(t)
}

func TestAnthropicSourceRequiresAPIKey(t *testing.T) {
	src := NewAnthropicSource(new(MockHTTPClient))
	_, err := src.ListModels(context.Background(), invoke.Target{
		Kind:        invoke.KindAnthropic,
		Credentials: map[string]string{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestAnthropicSourceHTTPError(t *testing.T) {
	client := new(MockHTTPClient)
	client.On("Do", mock.Anything).Return(jsonResponse(403, `{"error": {"message": "forbidden"}}`), nil)

	src := NewAnthropicSource(client)
	_, err := src.ListModels(context.Background(), invoke.Target{
		Kind:        invoke.KindAnthropic,
		Credentials: map[string]string{"api_key": "sk-ant-bad"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
