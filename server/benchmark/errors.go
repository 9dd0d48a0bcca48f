// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunNotFound is returned when a benchmark run id does not exist.
	ErrRunNotFound = errors.New("benchmark run not found")

	// ErrNoModels is returned when a create request names no models.
	ErrNoModels = errors.New("model_ids must not be empty")

	// ErrInvalidPromptPack is returned when the requested prompt pack is
	// not in the catalog.
	ErrInvalidPromptPack = errors.New("invalid prompt pack")

	// ErrInvalidConfig is returned when max_tokens, num_runs, or
	// warmup_runs fall outside their allowed ranges.
	ErrInvalidConfig = errors.New("invalid benchmark config")

	// ErrEngineClosed is returned when a run is started after shutdown
	// has begun.
	ErrEngineClosed = errors.New("benchmark engine closed")
)

// ModelsNotFoundError reports a create request naming model ids absent
// from the catalog.
type ModelsNotFoundError struct {
	IDs []string
}

func (e *ModelsNotFoundError) Error() string {
	return fmt.Sprintf("model ids not found: %s", strings.Join(e.IDs, ", "))
}
