// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package metrics measures streaming completion performance: time to first
// token, tokens per second, total latency, and estimated cost. One
// Collector measures one call; it is not safe for concurrent use.
package metrics

import (
	"time"

	"arguslm/platform/common/pricing"
)

// Bundle is the metric set produced by Finalize.
type Bundle struct {
	TTFTMS           float64  `json:"ttft_ms"`
	TotalLatencyMS   float64  `json:"total_latency_ms"`
	TPS              float64  `json:"tps"`
	TPSExcludingTTFT float64  `json:"tps_excluding_ttft"`
	InputTokens      int      `json:"input_tokens"`
	OutputTokens     int      `json:"output_tokens"`
	EstimatedCost    *float64 `json:"estimated_cost"`
}

// Collector tracks one streaming call from Start to Finalize.
type Collector struct {
	now          func() time.Time
	started      bool
	startTime    time.Time
	firstTokenAt time.Time
	sawToken     bool
	tokenCount   int
}

// NewCollector returns a Collector ready for Start.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// Start snapshots the clock. Calling Start again restarts the measurement.
func (c *Collector) Start() {
	c.started = true
	c.startTime = c.now()
	c.sawToken = false
	c.firstTokenAt = time.Time{}
	c.tokenCount = 0
}

// Reset discards everything recorded so far and restarts the measurement
// clock. Called when a streaming retry abandons a partial attempt, so
// chunks from the dead attempt never leak into the result.
func (c *Collector) Reset() {
	if !c.started {
		return
	}
	c.Start()
}

// RecordToken registers one chunk of streamed output. Empty content (role
// headers, keep-alives) is ignored. The first non-empty token fixes TTFT.
func (c *Collector) RecordToken(content string) {
	if !c.started || content == "" {
		return
	}
	if !c.sawToken {
		c.sawToken = true
		c.firstTokenAt = c.now()
	}
	c.tokenCount++
}

// Finalize snapshots the clock and computes the bundle.
//
// outputTokens, when positive, overrides the observed chunk count (used
// when the provider reports usage); inputTokens defaults to 0. Without a
// prior Start the bundle is all zeros. On the non-streaming path (no
// tokens recorded) TTFT equals total latency.
func (c *Collector) Finalize(modelID string, inputTokens, outputTokens int) Bundle {
	if !c.started {
		return Bundle{}
	}

	endTime := c.now()
	totalMS := float64(endTime.Sub(c.startTime)) / float64(time.Millisecond)

	ttftMS := totalMS
	if c.sawToken {
		ttftMS = float64(c.firstTokenAt.Sub(c.startTime)) / float64(time.Millisecond)
	}

	out := outputTokens
	if out <= 0 {
		out = c.tokenCount
	}
	in := inputTokens
	if in < 0 {
		in = 0
	}

	totalSeconds := totalMS / 1000
	tps := 0.0
	if totalSeconds > 0 {
		tps = float64(out) / totalSeconds
	}

	exclSeconds := (totalMS - ttftMS) / 1000
	tpsExcl := 0.0
	if exclSeconds > 0 {
		tpsExcl = float64(out) / exclSeconds
	}

	return Bundle{
		TTFTMS:           ttftMS,
		TotalLatencyMS:   totalMS,
		TPS:              tps,
		TPSExcludingTTFT: tpsExcl,
		InputTokens:      in,
		OutputTokens:     out,
		EstimatedCost:    pricing.Estimate(modelID, in, out),
	}
}
