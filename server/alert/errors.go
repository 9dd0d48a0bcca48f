// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import "errors"

var (
	// ErrRuleNotFound is returned when an alert rule does not exist.
	ErrRuleNotFound = errors.New("alert rule not found")

	// ErrAlertNotFound is returned when an alert does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrNameRequired is returned when a rule is created without a name.
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidRuleType is returned for a rule kind outside the closed set.
	ErrInvalidRuleType = errors.New("invalid rule_type")

	// ErrTargetModelRequired is returned when a specific_model_down rule
	// is created without a target model.
	ErrTargetModelRequired = errors.New("specific_model_down rule requires target_model_id")

	// ErrTargetNameRequired is returned when a model_unavailable_everywhere
	// rule is created without a target model name.
	ErrTargetNameRequired = errors.New("model_unavailable_everywhere rule requires target_model_name")
)
