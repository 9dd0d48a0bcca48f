// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"arguslm/platform/server/invoke"
)

// ExtractChunkContent pulls the text out of one streamed chunk. Two shapes
// exist: the typed invoke.Chunk used on the internal streaming path, and a
// decoded JSON object in the OpenAI chat-completions shape
// (choices[0].delta.content). Anything else yields the empty string. This
// is the only function that depends on the concrete chunk representation.
func ExtractChunkContent(chunk interface{}) string {
	switch c := chunk.(type) {
	case invoke.Chunk:
		return c.Content
	case *invoke.Chunk:
		if c == nil {
			return ""
		}
		return c.Content
	case map[string]interface{}:
		choices, ok := c["choices"].([]interface{})
		if !ok || len(choices) == 0 {
			return ""
		}
		first, ok := choices[0].(map[string]interface{})
		if !ok {
			return ""
		}
		delta, ok := first["delta"].(map[string]interface{})
		if !ok {
			return ""
		}
		content, _ := delta["content"].(string)
		return content
	}
	return ""
}
