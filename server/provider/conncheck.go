// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"arguslm/platform/server/discovery"
	"arguslm/platform/server/invoke"
)

const (
	// connectionTestTimeout bounds the whole probe.
	connectionTestTimeout = 10 * time.Second

	// connectionTestAttempts is the total attempt count: one retry max.
	connectionTestAttempts = 2

	connectionTestMaxTokens = 5
	connectionTestPrompt    = "test"
)

// connectionTestModels maps provider kinds to a cheap canonical model for
// the probe completion.
var connectionTestModels = map[string]string{
	invoke.KindOpenAI:    "gpt-3.5-turbo",
	invoke.KindAnthropic: "claude-3-haiku-20240307",
	invoke.KindGemini:    "gemini-1.5-flash",
	invoke.KindOllama:    "llama2",
	invoke.KindGroq:      "llama3-8b-8192",
	invoke.KindMistral:   "mistral-small-latest",
}

const defaultConnectionTestModel = "gpt-3.5-turbo"

// CompletionClient issues the probe completion for connection tests.
// *invoke.Invoker satisfies it.
type CompletionClient interface {
	Complete(ctx context.Context, target invoke.Target, prompt string, opts invoke.Options) (*invoke.Completion, error)
}

// runConnectionTest probes an endpoint with the given credentials. Hosted
// providers get a minimal completion; local servers (ollama, lm_studio)
// get a model-listing ping instead, since a completion would fail whenever
// the canonical test model is not pulled. Failures are reported in the
// result, never as an error.
func runConnectionTest(ctx context.Context, invoker CompletionClient, client invoke.HTTPClient, kind string, credentials map[string]string) *ConnectionTestResult {
	start := time.Now()

	if kind == invoke.KindOllama || kind == invoke.KindLMStudio {
		return pingLocalEndpoint(ctx, client, kind, credentials, start)
	}

	model := connectionTestModels[kind]
	if model == "" {
		model = defaultConnectionTestModel
	}

	opts := invoke.DefaultOptions()
	opts.Timeout = connectionTestTimeout
	opts.MaxRetries = connectionTestAttempts
	opts.MaxTokens = connectionTestMaxTokens

	target := invoke.Target{Kind: kind, Model: model, Credentials: credentials}
	completion, err := invoker.Complete(ctx, target, connectionTestPrompt, opts)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		return &ConnectionTestResult{
			Success:   false,
			Message:   fmt.Sprintf("Connection test failed: %v", err),
			LatencyMS: latency,
			Details:   map[string]interface{}{"error_type": string(invoke.KindOf(err))},
		}
	}

	return &ConnectionTestResult{
		Success:   true,
		Message:   fmt.Sprintf("Successfully connected to %s", kind),
		LatencyMS: latency,
		Details: map[string]interface{}{
			"model_tested":   model,
			"response_model": completion.Model,
		},
	}
}

// pingLocalEndpoint checks a local server by listing its models: Ollama
// answers /api/tags, LM Studio answers the OpenAI-style /models.
func pingLocalEndpoint(ctx context.Context, client invoke.HTTPClient, kind string, credentials map[string]string, start time.Time) *ConnectionTestResult {
	var pingURL string
	if kind == invoke.KindOllama {
		pingURL = discovery.OllamaTagsURL(credentials)
	} else {
		base, err := invoke.BaseURLFor(invoke.Target{Kind: kind, Credentials: credentials})
		if err != nil {
			return failedConnectionTest(err, start)
		}
		pingURL = base + "/models"
	}

	ctx, cancel := context.WithTimeout(ctx, connectionTestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return failedConnectionTest(err, start)
	}

	resp, err := client.Do(req)
	if err != nil {
		return failedConnectionTest(err, start)
	}
	defer resp.Body.Close()

	latency := float64(time.Since(start).Milliseconds())
	if resp.StatusCode != http.StatusOK {
		return &ConnectionTestResult{
			Success:   false,
			Message:   fmt.Sprintf("Connection test failed: endpoint returned status %d", resp.StatusCode),
			LatencyMS: latency,
			Details:   map[string]interface{}{"error_type": "http_error"},
		}
	}

	return &ConnectionTestResult{
		Success:   true,
		Message:   fmt.Sprintf("Successfully connected to %s", kind),
		LatencyMS: latency,
		Details:   map[string]interface{}{"endpoint_tested": pingURL},
	}
}

func failedConnectionTest(err error, start time.Time) *ConnectionTestResult {
	return &ConnectionTestResult{
		Success:   false,
		Message:   fmt.Sprintf("Connection test failed: %v", err),
		LatencyMS: float64(time.Since(start).Milliseconds()),
		Details:   map[string]interface{}{"error_type": string(invoke.KindOf(err))},
	}
}
