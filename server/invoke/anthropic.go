// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAnthropicBaseURL is the hosted Anthropic API endpoint.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	// AnthropicAPIVersion is the anthropic-version header value.
	AnthropicAPIVersion = "2023-06-01"

	// anthropicDefaultMaxTokens applies when the caller sets no limit;
	// the messages API requires max_tokens.
	anthropicDefaultMaxTokens = 4096
)

// anthropicClient speaks the Anthropic messages API.
type anthropicClient struct {
	client HTTPClient
}

func newAnthropicClient(client HTTPClient) *anthropicClient {
	if client == nil {
		client = &http.Client{}
	}
	return &anthropicClient{client: client}
}

// anthropicResponse is the non-streaming messages payload.
type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicStreamEvent covers the SSE event types the stream reader cares
// about: message_start, content_block_delta, message_delta.
type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage *struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *anthropicClient) buildRequest(ctx context.Context, target Target, prompt string, opts Options, stream bool) (*http.Request, error) {
	base := target.BaseURL()
	if base == "" {
		base = DefaultAnthropicBaseURL
	}
	base = strings.TrimRight(base, "/")

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	apiReq := map[string]any{
		"model":      target.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
	}
	if stream {
		apiReq["stream"] = true
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", base+"/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", target.Credentials["api_key"])
	httpReq.Header.Set("anthropic-version", AnthropicAPIVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

func (c *anthropicClient) complete(ctx context.Context, target Target, prompt string, opts Options) (*Completion, error) {
	start := time.Now()

	httpReq, err := c.buildRequest(ctx, target, prompt, opts, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newStatusError(resp.StatusCode, parseAnthropicError(body))
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &ProviderError{Kind: ServiceUnavailable, Message: "failed to decode response", Cause: err}
	}

	var contentBuilder strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			contentBuilder.WriteString(block.Text)
		}
	}

	model := apiResp.Model
	if model == "" {
		model = target.Model
	}

	return &Completion{
		Content:    contentBuilder.String(),
		Model:      model,
		StopReason: apiResp.StopReason,
		Usage: Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

func (c *anthropicClient) completeStream(ctx context.Context, target Target, prompt string, opts Options, handler ChunkHandler) (*Completion, error) {
	start := time.Now()

	httpReq, err := c.buildRequest(ctx, target, prompt, opts, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newStatusError(resp.StatusCode, parseAnthropicError(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var contentBuilder strings.Builder
	var usage Usage
	var stopReason string
	var responseModel string

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue // skip malformed events
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				responseModel = event.Message.Model
				if event.Message.Usage != nil {
					usage.InputTokens = event.Message.Usage.InputTokens
				}
			}

		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				contentBuilder.WriteString(event.Delta.Text)
				if handler != nil {
					if err := handler(Chunk{Content: event.Delta.Text}); err != nil {
						return nil, &handlerAbort{err: err}
					}
				}
			}

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			// terminal event; usage and stop reason already captured
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, classifyTransport(err)
	}

	if handler != nil {
		if err := handler(Chunk{Done: true}); err != nil {
			return nil, &handlerAbort{err: err}
		}
	}

	if responseModel == "" {
		responseModel = target.Model
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return &Completion{
		Content:    contentBuilder.String(),
		Model:      responseModel,
		StopReason: stopReason,
		Usage:      usage,
		Latency:    time.Since(start),
	}, nil
}

// parseAnthropicError extracts the upstream error text from an Anthropic
// error body {"type":"error","error":{"type","message"}}.
func parseAnthropicError(body []byte) string {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(body))
}
