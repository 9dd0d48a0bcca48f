// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"arguslm/platform/shared/logger"
)

// Prometheus metrics
var (
	promProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arguslm_provider_calls_total",
			Help: "Total number of provider completion calls",
		},
		[]string{"kind", "outcome"},
	)
	promProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arguslm_provider_call_duration_milliseconds",
			Help:    "Provider call duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
		},
		[]string{"kind"},
	)
	promProviderRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arguslm_provider_retries_total",
			Help: "Total number of provider call retries",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(promProviderCalls)
	prometheus.MustRegister(promProviderCallDuration)
	prometheus.MustRegister(promProviderRetries)
}

// wireClient is one attempt against a provider endpoint. Retry lives in
// the Invoker, not here.
type wireClient interface {
	complete(ctx context.Context, target Target, prompt string, opts Options) (*Completion, error)
	completeStream(ctx context.Context, target Target, prompt string, opts Options, handler ChunkHandler) (*Completion, error)
}

// Invoker dispatches completion calls to the wire client for the target's
// provider kind and applies the retry policy: RateLimited, Timeout, and
// ServiceUnavailable failures are retried with exponential backoff;
// AuthFailure and BadRequest surface immediately.
type Invoker struct {
	openai    *openAIClient
	anthropic *anthropicClient
	bedrock   *bedrockClient
	logger    *logger.Logger
}

// NewInvoker creates an Invoker. A nil log gets a default component logger.
func NewInvoker(log *logger.Logger) *Invoker {
	if log == nil {
		log = logger.New("invoke")
	}
	return &Invoker{
		openai:    newOpenAIClient(nil),
		anthropic: newAnthropicClient(nil),
		bedrock:   newBedrockClient(),
		logger:    log,
	}
}

// SetHTTPClient sets a custom HTTP client for testing. Bedrock targets are
// unaffected; the SDK carries its own transport.
func (inv *Invoker) SetHTTPClient(client HTTPClient) {
	inv.openai.client = client
	inv.anthropic.client = client
}

func (inv *Invoker) clientFor(kind string) wireClient {
	switch kind {
	case KindAnthropic:
		return inv.anthropic
	case KindBedrock:
		return inv.bedrock
	default:
		return inv.openai
	}
}

// Complete issues one non-streaming completion call with retries.
func (inv *Invoker) Complete(ctx context.Context, target Target, prompt string, opts Options) (*Completion, error) {
	opts = opts.withDefaults()
	client := inv.clientFor(target.Kind)
	start := time.Now()

	var lastErr error
	delay := opts.RetryDelay

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		completion, err := client.complete(attemptCtx, target, prompt, opts)
		cancel()

		if err == nil {
			inv.observe(target.Kind, "success", start)
			return completion, nil
		}

		if !IsRetriable(err) || errors.Is(err, context.Canceled) {
			inv.observe(target.Kind, string(KindOf(err)), start)
			return nil, err
		}

		lastErr = err
		if attempt < opts.MaxRetries {
			promProviderRetries.WithLabelValues(target.Kind).Inc()
			inv.logger.Warn("completion attempt failed, retrying", map[string]interface{}{
				"kind":     target.Kind,
				"model":    target.Model,
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			})
			if !sleepCtx(ctx, delay) {
				break
			}
			delay = time.Duration(float64(delay) * opts.RetryMultiplier)
		}
	}

	inv.observe(target.Kind, string(KindOf(lastErr)), start)
	return nil, lastErr
}

// CompleteStream issues one streaming completion call with retries. A
// retry restarts the stream from the beginning: the handler receives
// Chunk{Restart: true} before the fresh attempt and must discard
// everything received so far. The returned Completion aggregates the
// chunks of the successful attempt.
func (inv *Invoker) CompleteStream(ctx context.Context, target Target, prompt string, opts Options, handler ChunkHandler) (*Completion, error) {
	opts = opts.withDefaults()
	client := inv.clientFor(target.Kind)
	start := time.Now()

	var lastErr error
	delay := opts.RetryDelay

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 && handler != nil {
			if err := handler(Chunk{Restart: true}); err != nil {
				return nil, &handlerAbort{err: err}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		completion, err := client.completeStream(attemptCtx, target, prompt, opts, handler)
		cancel()

		if err == nil {
			inv.observe(target.Kind, "success", start)
			return completion, nil
		}

		var abort *handlerAbort
		if errors.As(err, &abort) {
			inv.observe(target.Kind, "handler_abort", start)
			return nil, err
		}

		if !IsRetriable(err) || errors.Is(err, context.Canceled) {
			inv.observe(target.Kind, string(KindOf(err)), start)
			return nil, err
		}

		lastErr = err
		if attempt < opts.MaxRetries {
			promProviderRetries.WithLabelValues(target.Kind).Inc()
			inv.logger.Warn("streaming attempt failed, retrying", map[string]interface{}{
				"kind":     target.Kind,
				"model":    target.Model,
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			})
			if !sleepCtx(ctx, delay) {
				break
			}
			delay = time.Duration(float64(delay) * opts.RetryMultiplier)
		}
	}

	inv.observe(target.Kind, string(KindOf(lastErr)), start)
	return nil, lastErr
}

func (inv *Invoker) observe(kind, outcome string, start time.Time) {
	promProviderCalls.WithLabelValues(kind, outcome).Inc()
	promProviderCallDuration.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
