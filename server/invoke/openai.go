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

// DefaultAzureAPIVersion is used when the credential bundle carries no
// api_version.
const DefaultAzureAPIVersion = "2024-08-01-preview"

// defaultBaseURLs maps provider kinds to their hosted chat-completions
// endpoints. Kinds absent here (azure, vertex, custom_openai_compatible)
// require a base_url credential.
var defaultBaseURLs = map[string]string{
	KindOpenAI:     "https://api.openai.com/v1",
	KindGemini:     "https://generativelanguage.googleapis.com/v1beta/openai",
	KindOllama:     "http://localhost:11434/v1",
	KindLMStudio:   "http://localhost:1234/v1",
	KindOpenRouter: "https://openrouter.ai/api/v1",
	KindTogether:   "https://api.together.xyz/v1",
	KindGroq:       "https://api.groq.com/openai/v1",
	KindMistral:    "https://api.mistral.ai/v1",
	KindXAI:        "https://api.x.ai/v1",
	KindFireworks:  "https://api.fireworks.ai/inference/v1",
	KindDeepSeek:   "https://api.deepseek.com/v1",
}

// BaseURLFor resolves the endpoint for a target: the base_url credential
// when present, the kind's hosted default otherwise.
func BaseURLFor(target Target) (string, error) {
	if base := target.BaseURL(); base != "" {
		return strings.TrimRight(base, "/"), nil
	}
	if base, ok := defaultBaseURLs[target.Kind]; ok {
		return base, nil
	}
	return "", &ProviderError{
		Kind:    BadRequest,
		Message: fmt.Sprintf("provider kind %s requires a base_url credential", target.Kind),
	}
}

// openAIClient speaks the OpenAI chat-completions wire shared by most
// hosted and self-hosted endpoints. Azure differs only in URL layout and
// auth header.
type openAIClient struct {
	client HTTPClient
}

func newOpenAIClient(client HTTPClient) *openAIClient {
	if client == nil {
		client = &http.Client{}
	}
	return &openAIClient{client: client}
}

// openAIResponse is the non-streaming completion payload.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// openAIStreamChunk is one SSE data payload.
type openAIStreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

func (c *openAIClient) buildRequest(ctx context.Context, target Target, prompt string, opts Options, stream bool) (*http.Request, error) {
	base, err := BaseURLFor(target)
	if err != nil {
		return nil, err
	}

	apiReq := map[string]any{
		"model": target.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		apiReq["max_tokens"] = opts.MaxTokens
	}
	if stream {
		apiReq["stream"] = true
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := base + "/chat/completions"
	if target.Kind == KindAzure {
		apiVersion := target.Credentials["api_version"]
		if apiVersion == "" {
			apiVersion = DefaultAzureAPIVersion
		}
		url = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, target.Model, apiVersion)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if target.Kind == KindAzure {
		httpReq.Header.Set("api-key", target.APIKey())
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+target.APIKey())
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

func (c *openAIClient) complete(ctx context.Context, target Target, prompt string, opts Options) (*Completion, error) {
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
		return nil, newStatusError(resp.StatusCode, parseErrorMessage(body))
	}

	var apiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &ProviderError{Kind: ServiceUnavailable, Message: "failed to decode response", Cause: err}
	}

	content := ""
	stopReason := ""
	if len(apiResp.Choices) > 0 {
		content = apiResp.Choices[0].Message.Content
		stopReason = apiResp.Choices[0].FinishReason
	}

	model := apiResp.Model
	if model == "" {
		model = target.Model
	}

	return &Completion{
		Content:    content,
		Model:      model,
		StopReason: stopReason,
		Usage: Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:  apiResp.Usage.TotalTokens,
		},
		Latency: time.Since(start),
	}, nil
}

func (c *openAIClient) completeStream(ctx context.Context, target Target, prompt string, opts Options, handler ChunkHandler) (*Completion, error) {
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
		return nil, newStatusError(resp.StatusCode, parseErrorMessage(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var contentBuilder strings.Builder
	var stopReason string
	var usage Usage
	var responseModel string

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed events
		}

		if chunk.Model != "" {
			responseModel = chunk.Model
		}

		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				contentBuilder.WriteString(choice.Delta.Content)
				if handler != nil {
					if err := handler(Chunk{Content: choice.Delta.Content}); err != nil {
						return nil, &handlerAbort{err: err}
					}
				}
			}
			if choice.FinishReason != "" {
				stopReason = choice.FinishReason
			}
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
			usage.TotalTokens = chunk.Usage.TotalTokens
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
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	return &Completion{
		Content:    contentBuilder.String(),
		Model:      responseModel,
		StopReason: stopReason,
		Usage:      usage,
		Latency:    time.Since(start),
	}, nil
}

// parseErrorMessage extracts the upstream error text from a JSON error
// body, falling back to the raw body.
func parseErrorMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error.Message != "" {
			return errResp.Error.Message
		}
		if errResp.Detail != "" {
			return errResp.Detail
		}
	}
	return strings.TrimSpace(string(body))
}

// handlerAbort marks a ChunkHandler error. The retry loop returns it to
// the caller without further attempts.
type handlerAbort struct {
	err error
}

func (h *handlerAbort) Error() string {
	return fmt.Sprintf("handler error: %v", h.err)
}

func (h *handlerAbort) Unwrap() error {
	return h.err
}
