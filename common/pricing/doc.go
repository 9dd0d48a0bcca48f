// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

/*
Package pricing holds the frozen per-model price table used to attach cost
estimates to benchmark results.

Prices are USD per million tokens. Lookups normalize qualified model names
("openai/gpt-4o") to their bare form first; models absent from the table get
no estimate rather than a guessed one:

	cost := pricing.Estimate("openai/gpt-4o", inputTokens, outputTokens)
	if cost != nil {
	    result.EstimatedCost = cost
	}

Price changes ship as code changes, so historical results can be traced to
the table revision that produced them.
*/
package pricing
