// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package invoke

import "strings"

// Provider kinds. The set is closed: a kind selects the wire protocol,
// retry rules, model-name prefix, credential shape, and discovery adapter.
const (
	KindOpenAI       = "openai"
	KindAnthropic    = "anthropic"
	KindAzure        = "azure"
	KindBedrock      = "bedrock"
	KindVertex       = "vertex"
	KindGemini       = "gemini"
	KindOllama       = "ollama"
	KindLMStudio     = "lm_studio"
	KindOpenRouter   = "openrouter"
	KindTogether     = "together"
	KindGroq         = "groq"
	KindMistral      = "mistral"
	KindXAI          = "xai"
	KindFireworks    = "fireworks"
	KindDeepSeek     = "deepseek"
	KindCustomOpenAI = "custom_openai_compatible"
)

// knownKinds lists every accepted provider kind.
var knownKinds = map[string]bool{
	KindOpenAI:       true,
	KindAnthropic:    true,
	KindAzure:        true,
	KindBedrock:      true,
	KindVertex:       true,
	KindGemini:       true,
	KindOllama:       true,
	KindLMStudio:     true,
	KindOpenRouter:   true,
	KindTogether:     true,
	KindGroq:         true,
	KindMistral:      true,
	KindXAI:          true,
	KindFireworks:    true,
	KindDeepSeek:     true,
	KindCustomOpenAI: true,
}

// KnownKind reports whether kind is in the closed set.
func KnownKind(kind string) bool {
	return knownKinds[kind]
}

// Kinds returns the closed set of provider kinds in a stable order.
func Kinds() []string {
	return []string{
		KindOpenAI, KindAnthropic, KindAzure, KindBedrock, KindVertex,
		KindGemini, KindOllama, KindLMStudio, KindOpenRouter, KindTogether,
		KindGroq, KindMistral, KindXAI, KindFireworks, KindDeepSeek,
		KindCustomOpenAI,
	}
}

// kindPrefixes maps kinds whose qualified prefix differs from "<kind>/".
// Endpoints speaking the OpenAI wire without their own namespace qualify
// under openai/.
var kindPrefixes = map[string]string{
	KindVertex:       "vertex_ai/",
	KindLMStudio:     "openai/",
	KindCustomOpenAI: "openai/",
}

// prefixFor returns the qualified prefix for a kind.
func prefixFor(kind string) string {
	if p, ok := kindPrefixes[kind]; ok {
		return p
	}
	return kind + "/"
}

// QualifyModel prepends the kind's prefix to model unless it already
// carries it. Qualified names appear in stored metrics and cost lookups;
// wire requests always carry the bare model id.
func QualifyModel(kind, model string) string {
	prefix := prefixFor(kind)
	if strings.HasPrefix(model, prefix) {
		return model
	}
	return prefix + model
}

// BareModel strips the kind's prefix from model if present. The inverse of
// QualifyModel for the same kind.
func BareModel(kind, model string) string {
	return strings.TrimPrefix(model, prefixFor(kind))
}
