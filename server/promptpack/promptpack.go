// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package promptpack holds the closed catalog of benchmark and monitoring
// prompts. Each pack pairs a static prompt with an expected output size so
// metrics stay comparable across models and across runs. The catalog is
// frozen at compile time; operators pick packs by id.
package promptpack

import (
	"fmt"
	"sort"
	"strings"
)

// Pack is one named prompt with its expected output size hint.
type Pack struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Prompt         string `json:"prompt"`
	ExpectedTokens int    `json:"expected_tokens"`
}

// DefaultPackID is the pack used by monitoring when none is configured.
const DefaultPackID = "health_check"

// catalog order is stable and is the order List returns.
var catalog = []Pack{
	{
		ID:             "health_check",
		Name:           "Health Check",
		Prompt:         "Count from 1 to 20, each number on a new line.",
		ExpectedTokens: 30,
	},
	{
		ID:             "shakespeare",
		Name:           "Shakespeare",
		Prompt:         "Write a soliloquy in the style of Shakespeare about the anxiety of modern technology. Make it at least 100 words, in iambic pentameter where possible.",
		ExpectedTokens: 150,
	},
	{
		ID:             "synthetic_short",
		Name:           "Synthetic Short",
		Prompt:         "Explain what an API is in exactly 3 sentences.",
		ExpectedTokens: 50,
	},
	{
		ID:             "synthetic_medium",
		Name:           "Synthetic Medium",
		Prompt:         "Describe the process of photosynthesis in detail, covering light-dependent and light-independent reactions. Write approximately 150 words.",
		ExpectedTokens: 200,
	},
	{
		ID:             "synthetic_long",
		Name:           "Synthetic Long",
		Prompt:         "Write a comprehensive guide to starting a small business, covering: market research, business planning, legal requirements, funding options, marketing strategies, hiring considerations, and common pitfalls to avoid. Be thorough and detailed.",
		ExpectedTokens: 500,
	},
	{
		ID:             "code_generation",
		Name:           "Code Generation",
		Prompt:         "Write a Python function that implements binary search on a sorted list. Include docstring, type hints, and handle edge cases.",
		ExpectedTokens: 150,
	},
	{
		ID:             "reasoning",
		Name:           "Reasoning",
		Prompt:         "A farmer has 17 sheep. All but 9 die. How many sheep are left? Explain your reasoning step by step.",
		ExpectedTokens: 100,
	},
}

var byID = func() map[string]Pack {
	m := make(map[string]Pack, len(catalog))
	for _, p := range catalog {
		m[p.ID] = p
	}
	return m
}()

// Get returns the pack for id, or an error naming the valid options.
func Get(id string) (Pack, error) {
	pack, ok := byID[id]
	if !ok {
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return Pack{}, fmt.Errorf("unknown prompt pack: %s (valid options: %s)", id, strings.Join(ids, ", "))
	}
	return pack, nil
}

// Prompt returns the prompt text for id.
func Prompt(id string) (string, error) {
	pack, err := Get(id)
	if err != nil {
		return "", err
	}
	return pack.Prompt, nil
}

// Valid reports whether id names a pack in the catalog.
func Valid(id string) bool {
	_, ok := byID[id]
	return ok
}

// List returns every pack in catalog order.
func List() []Pack {
	out := make([]Pack, len(catalog))
	copy(out, catalog)
	return out
}
