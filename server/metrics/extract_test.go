// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"encoding/json"
	"testing"

	"arguslm/platform/server/invoke"
)

func TestExtractChunkContentTypedChunk(t *testing.T) {
	if got := ExtractChunkContent(invoke.Chunk{Content: "hello"}); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if got := ExtractChunkContent(&invoke.Chunk{Content: "world"}); got != "world" {
		t.Errorf("got %q, want %q", got, "world")
	}
	var nilChunk *invoke.Chunk
	if got := ExtractChunkContent(nilChunk); got != "" {
		t.Errorf("got %q for nil chunk, want empty", got)
	}
}

func TestExtractChunkContentDecodedJSON(t *testing.T) {
	raw := `{"choices":[{"delta":{"content":"streamed text"}}]}`
	var chunk map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := ExtractChunkContent(chunk); got != "streamed text" {
		t.Errorf("got %q, want %q", got, "streamed text")
	}
}

func TestExtractChunkContentMalformedShapes(t *testing.T) {
	cases := []interface{}{
		nil,
		42,
		"bare string",
		map[string]interface{}{},
		map[string]interface{}{"choices": "not-a-list"},
		map[string]interface{}{"choices": []interface{}{}},
		map[string]interface{}{"choices": []interface{}{"not-a-map"}},
		map[string]interface{}{"choices": []interface{}{map[string]interface{}{}}},
		map[string]interface{}{"choices": []interface{}{map[string]interface{}{
			"delta": map[string]interface{}{"content": nil},
		}}},
	}
	for i, chunk := range cases {
		if got := ExtractChunkContent(chunk); got != "" {
			t.Errorf("case %d: got %q, want empty", i, got)
		}
	}
}
