// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package promptpack

import (
	"strings"
	"testing"
)

func TestGetKnownPack(t *testing.T) {
	pack, err := Get("health_check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.ID != "health_check" {
		t.Errorf("id = %q, want health_check", pack.ID)
	}
	if pack.Prompt != "Count from 1 to 20, each number on a new line." {
		t.Errorf("unexpected prompt: %q", pack.Prompt)
	}
	if pack.ExpectedTokens != 30 {
		t.Errorf("expected_tokens = %d, want 30", pack.ExpectedTokens)
	}
}

func TestGetUnknownPack(t *testing.T) {
	_, err := Get("nope")
	if err == nil {
		t.Fatal("expected error for unknown pack")
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error should name the bad id: %v", err)
	}
	if !strings.Contains(err.Error(), "health_check") {
		t.Errorf("error should list valid options: %v", err)
	}
}

func TestPrompt(t *testing.T) {
	prompt, err := Prompt("synthetic_short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "Explain what an API is in exactly 3 sentences." {
		t.Errorf("unexpected prompt: %q", prompt)
	}
	if _, err := Prompt("missing"); err == nil {
		t.Error("expected error for unknown pack")
	}
}

func TestValid(t *testing.T) {
	for _, id := range []string{
		"health_check", "shakespeare", "synthetic_short", "synthetic_medium",
		"synthetic_long", "code_generation", "reasoning",
	} {
		if !Valid(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	if Valid("") || Valid("custom") {
		t.Error("unexpected pack accepted")
	}
}

func TestListIsStableAndComplete(t *testing.T) {
	packs := List()
	if len(packs) != 7 {
		t.Fatalf("expected 7 packs, got %d", len(packs))
	}
	if packs[0].ID != DefaultPackID {
		t.Errorf("first pack = %q, want %q", packs[0].ID, DefaultPackID)
	}
	for _, p := range packs {
		if p.Prompt == "" {
			t.Errorf("pack %q has empty prompt", p.ID)
		}
		if p.ExpectedTokens <= 0 {
			t.Errorf("pack %q has non-positive expected_tokens", p.ID)
		}
	}

	// Mutating the returned slice must not corrupt the catalog.
	packs[0].Prompt = "mutated"
	fresh, _ := Get(DefaultPackID)
	if fresh.Prompt == "mutated" {
		t.Error("List must return a copy of the catalog")
	}
}
