// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"arguslm/platform/server/catalog"
	"arguslm/platform/server/invoke"
	"arguslm/platform/server/metrics"
	"arguslm/platform/server/promptpack"
	"arguslm/platform/shared/logger"
)

// Prometheus metrics
var (
	promProbeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arguslm_probe_total",
			Help: "Total number of uptime probes by resulting status",
		},
		[]string{"status"},
	)
	promProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arguslm_probe_duration_ms",
			Help:    "Uptime probe duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(promProbeTotal)
	prometheus.MustRegister(promProbeDuration)
}

// Probe parameters. Health checks stay cheap: a short completion with a
// tight deadline.
const (
	probeMaxTokens = 100
	probeTimeout   = 15 * time.Second
)

// StreamClient is the streaming side of the provider invoker.
type StreamClient interface {
	CompleteStream(ctx context.Context, target invoke.Target, prompt string, opts invoke.Options, handler invoke.ChunkHandler) (*invoke.Completion, error)
}

// Checker probes one model with a short streaming completion and reports
// the outcome as a Check. A probe failure becomes a down check; Check
// itself never fails.
type Checker struct {
	invoker StreamClient
	log     *logger.Logger
}

// NewChecker creates a Checker. A nil invoker gets the default one.
func NewChecker(invoker StreamClient, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.New("monitoring")
	}
	if invoker == nil {
		invoker = invoke.NewInvoker(log)
	}
	return &Checker{invoker: invoker, log: log}
}

// Check probes model with the given decrypted credentials and prompt pack.
// An up check records total latency, TTFT, generation throughput after the
// first token, and the output token count. A down check records only the
// error.
func (c *Checker) Check(ctx context.Context, model catalog.ModelWithProvider, credentials map[string]string, promptPack string) Check {
	c.log.Info("Checking model uptime", map[string]interface{}{
		"model_id":    model.ModelID,
		"provider":    model.ProviderType,
		"prompt_pack": promptPack,
		"api_key_set": credentials["api_key"] != "",
	})

	start := time.Now()
	defer func() {
		promProbeDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	prompt, err := promptpack.Prompt(promptPack)
	if err != nil {
		return c.down(model, err)
	}

	target := invoke.Target{
		Kind:        model.ProviderType,
		Model:       model.ModelID,
		Credentials: credentials,
	}

	opts := invoke.DefaultOptions()
	opts.MaxTokens = probeMaxTokens
	opts.Temperature = 1
	opts.Timeout = probeTimeout

	collector := metrics.NewCollector()
	collector.Start()

	completion, err := c.invoker.CompleteStream(ctx, target, prompt, opts, func(chunk invoke.Chunk) error {
		if chunk.Restart {
			collector.Reset()
			return nil
		}
		collector.RecordToken(chunk.Content)
		return nil
	})
	if err != nil {
		return c.down(model, err)
	}

	bundle := collector.Finalize(model.ModelID, completion.Usage.InputTokens, completion.Usage.OutputTokens)
	promProbeTotal.WithLabelValues(StatusUp).Inc()

	// tps deliberately stores throughput excluding TTFT: queue time says
	// nothing about generation speed.
	return Check{
		ID:           uuid.New().String(),
		ModelID:      model.ID,
		Status:       StatusUp,
		LatencyMS:    &bundle.TotalLatencyMS,
		TTFTMS:       &bundle.TTFTMS,
		TPS:          &bundle.TPSExcludingTTFT,
		OutputTokens: &bundle.OutputTokens,
		CreatedAt:    time.Now().UTC(),
	}
}

// down logs the probe failure and builds the failed check.
func (c *Checker) down(model catalog.ModelWithProvider, err error) Check {
	c.log.ErrorWithErr("Uptime check failed", err, map[string]interface{}{
		"model_id": model.ModelID,
		"provider": model.ProviderType,
	})
	promProbeTotal.WithLabelValues(StatusDown).Inc()
	return downCheck(model.ID, err)
}

// downCheck builds a down check carrying only the error.
func downCheck(modelID string, err error) Check {
	msg := err.Error()
	return Check{
		ID:        uuid.New().String(),
		ModelID:   modelID,
		Status:    StatusDown,
		Error:     &msg,
		CreatedAt: time.Now().UTC(),
	}
}
