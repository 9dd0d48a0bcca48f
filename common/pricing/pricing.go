// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package pricing

import "strings"

// ModelPricing contains pricing for a specific model.
// Prices are USD per million tokens.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// modelPricing is the frozen price table. Keys are bare model identifiers;
// lookups go through Normalize first. Unknown models have no cost estimate.
var modelPricing = map[string]ModelPricing{
	// OpenAI
	"gpt-4o":        {2.50, 10.00},
	"gpt-4o-mini":   {0.15, 0.60},
	"gpt-4-turbo":   {10.00, 30.00},
	"gpt-4":         {30.00, 60.00},
	"gpt-3.5-turbo": {0.50, 1.50},

	// Anthropic Claude 4.5
	"claude-opus-4-5-20251101":   {5.00, 25.00},
	"claude-opus-4-5":            {5.00, 25.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-sonnet-4-5":          {3.00, 15.00},
	"claude-haiku-4-5-20251001":  {1.00, 5.00},
	"claude-haiku-4-5":           {1.00, 5.00},

	// Anthropic Claude 4.x
	"claude-opus-4-1-20250805": {15.00, 75.00},
	"claude-opus-4-0":          {15.00, 75.00},
	"claude-opus-4-20250514":   {15.00, 75.00},
	"claude-sonnet-4-0":        {3.00, 15.00},
	"claude-sonnet-4-20250514": {3.00, 15.00},

	// Anthropic Claude 3.x
	"claude-3-7-sonnet-20250219": {3.00, 15.00},
	"claude-3-7-sonnet-latest":   {3.00, 15.00},
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-3-5-haiku-latest":    {0.80, 4.00},
	"claude-3-opus-20240229":     {15.00, 75.00},
	"claude-3-opus-latest":       {15.00, 75.00},
	"claude-3-sonnet-20240229":   {3.00, 15.00},
	"claude-3-haiku-20240307":    {0.25, 1.25},

	// Google Gemini
	"gemini-2.0-flash-exp": {0.00, 0.00},
	"gemini-1.5-pro":       {1.25, 5.00},
	"gemini-1.5-flash":     {0.075, 0.30},

	// AWS Bedrock qualified identifiers
	"anthropic.claude-3-5-sonnet-20241022-v2:0": {3.00, 15.00},
	"anthropic.claude-3-5-haiku-20241022-v1:0":  {0.80, 4.00},
}

// strippablePrefixes are the provider qualifiers that may precede a bare
// model identifier. Only one is removed; model ids that legitimately
// contain slashes (openrouter paths) are left intact.
var strippablePrefixes = []string{
	"openai/",
	"anthropic/",
	"google/",
	"gemini/",
	"bedrock/",
	"vertex_ai/",
	"azure/",
	"ollama/",
	"groq/",
	"mistral/",
	"openrouter/",
	"together/",
	"xai/",
	"fireworks/",
	"deepseek/",
	"lm_studio/",
}

// Normalize strips a single leading provider qualifier from a model name,
// e.g. "openai/gpt-4o" -> "gpt-4o".
func Normalize(model string) string {
	for _, prefix := range strippablePrefixes {
		if strings.HasPrefix(model, prefix) {
			return strings.TrimPrefix(model, prefix)
		}
	}
	return model
}

// Lookup returns the pricing entry for a model, normalizing first.
func Lookup(model string) (ModelPricing, bool) {
	p, ok := modelPricing[Normalize(model)]
	return p, ok
}

// Estimate returns the USD cost for the given token counts, or nil when the
// model is not in the price table. Formula:
// (input/1e6)*in_price + (output/1e6)*out_price.
func Estimate(model string, inputTokens, outputTokens int) *float64 {
	p, ok := Lookup(model)
	if !ok {
		return nil
	}
	cost := (float64(inputTokens)/1e6)*p.InputPerMTok + (float64(outputTokens)/1e6)*p.OutputPerMTok
	return &cost
}
