// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import "errors"

var (
	// ErrConfigNotFound indicates the configuration row vanished between
	// the lazy create and an update.
	ErrConfigNotFound = errors.New("monitoring config not found")

	// ErrInvalidInterval indicates a configuration update with an
	// interval below one minute. The message is the wire detail.
	ErrInvalidInterval = errors.New("interval_minutes must be >= 1")

	// ErrInvalidPromptPack indicates a configuration update naming a
	// prompt pack outside the built-in catalog. Callers wrap it with the
	// list of valid pack ids.
	ErrInvalidPromptPack = errors.New("prompt_pack must be one of")
)
