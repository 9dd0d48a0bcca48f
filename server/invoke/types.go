// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package invoke issues completion calls to LLM provider endpoints. It
// dispatches on provider kind to one of three wire protocols (OpenAI
// chat-completions, Anthropic messages, AWS Bedrock), classifies failures
// into a small fixed taxonomy, and retries the retriable kinds with capped
// exponential backoff.
package invoke

import (
	"net/http"
	"time"
)

const (
	// DefaultTemperature favors maximum provider compatibility; several
	// hosted models reject other values.
	DefaultTemperature = 1.0

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the total number of attempts, not the number
	// of retries after the first failure.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the sleep before the second attempt; each
	// subsequent sleep is multiplied by DefaultRetryMultiplier.
	DefaultRetryDelay = time.Second

	// DefaultRetryMultiplier is the exponential backoff factor.
	DefaultRetryMultiplier = 2.0
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Target names the endpoint a call goes to: the provider kind selects the
// wire protocol, Model is the bare model id (no kind prefix), and
// Credentials is the decrypted bundle from the provider account.
//
// Recognized credential keys: api_key, base_url, region, api_version,
// access_key_id, secret_access_key, session_token.
type Target struct {
	Kind        string
	Model       string
	Credentials map[string]string
}

// BaseURL returns the endpoint override from the credential bundle, if any.
func (t Target) BaseURL() string {
	return t.Credentials["base_url"]
}

// APIKey returns the key for Authorization-style headers. Self-hosted
// endpoints that run without auth still need a non-empty bearer token on
// the OpenAI wire, so an empty key with a base_url override becomes the
// literal "not-needed".
func (t Target) APIKey() string {
	key := t.Credentials["api_key"]
	if key == "" && t.BaseURL() != "" {
		return "not-needed"
	}
	return key
}

// Region returns the AWS region for Bedrock targets.
func (t Target) Region() string {
	return t.Credentials["region"]
}

// Options controls sampling, timeout, and retry behavior for one call.
// Zero-value fields fall back to the package defaults; Temperature is
// defaulted only when negative since 0 is a valid setting.
type Options struct {
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	RetryMultiplier float64
}

// DefaultOptions returns Options populated with the package defaults.
func DefaultOptions() Options {
	return Options{
		Temperature:     DefaultTemperature,
		Timeout:         DefaultTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
		RetryMultiplier: DefaultRetryMultiplier,
	}
}

// withDefaults fills unset fields. The result is always safe to execute.
func (o Options) withDefaults() Options {
	if o.Temperature < 0 {
		o.Temperature = DefaultTemperature
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.RetryMultiplier <= 0 {
		o.RetryMultiplier = DefaultRetryMultiplier
	}
	return o
}

// Usage contains token counts reported by the provider. Zero values mean
// the provider did not report usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Completion is the result of a non-streaming call, or the aggregate of a
// streaming call after the final chunk.
type Completion struct {
	Content    string
	Model      string
	StopReason string
	Usage      Usage
	Latency    time.Duration
}

// Chunk is one unit of streamed output. Restart marks the boundary of a
// fresh retry attempt: the consumer must discard everything received so
// far. Done marks normal termination.
type Chunk struct {
	Content string
	Done    bool
	Restart bool
}

// ChunkHandler receives stream chunks in order. Returning an error aborts
// the stream without retry.
type ChunkHandler func(Chunk) error
