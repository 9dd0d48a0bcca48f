// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package alert owns alert rules, the alerts they raise, and the rule
// evaluation that runs after every monitoring tick. An unacknowledged
// alert marks an open incident; while one is open no duplicate is
// raised for the same rule/model pair.
package alert

import (
	"fmt"
	"time"
)

// Rule kinds. performance_degradation is accepted and stored but the
// evaluator ignores it until a threshold schema exists.
const (
	RuleAnyModelDown               = "any_model_down"
	RuleSpecificModelDown          = "specific_model_down"
	RuleModelUnavailableEverywhere = "model_unavailable_everywhere"
	RulePerformanceDegradation     = "performance_degradation"
)

// ruleTypes is the closed set of accepted rule kinds.
var ruleTypes = map[string]bool{
	RuleAnyModelDown:               true,
	RuleSpecificModelDown:          true,
	RuleModelUnavailableEverywhere: true,
	RulePerformanceDegradation:     true,
}

// Rule is a persisted alert rule. TargetModelID is set only for
// specific_model_down; TargetModelName only for
// model_unavailable_everywhere. ThresholdConfig is reserved.
type Rule struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	RuleType        string                 `json:"rule_type"`
	Enabled         bool                   `json:"enabled"`
	TargetModelID   *string                `json:"target_model_id"`
	TargetModelName *string                `json:"target_model_name"`
	ThresholdConfig map[string]interface{} `json:"threshold_config"`
	NotifyInApp     bool                   `json:"notify_in_app"`
	NotifyEmail     bool                   `json:"notify_email"`
	NotifyWebhook   bool                   `json:"notify_webhook"`
	WebhookURL      *string                `json:"webhook_url"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"-"`
}

// Alert is one raised incident. ModelID is null for cross-model rules
// such as model_unavailable_everywhere.
type Alert struct {
	ID           string    `json:"id"`
	RuleID       string    `json:"rule_id"`
	ModelID      *string   `json:"model_id"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// CreateRuleRequest is the request body for creating an alert rule.
type CreateRuleRequest struct {
	Name            string  `json:"name"`
	RuleType        string  `json:"rule_type"`
	TargetModelID   *string `json:"target_model_id"`
	TargetModelName *string `json:"target_model_name"`
	Enabled         *bool   `json:"enabled"`
	NotifyInApp     *bool   `json:"notify_in_app"`
}

// Validate checks required fields and the cross-field requirements of
// each rule kind.
func (r CreateRuleRequest) Validate() error {
	if r.Name == "" {
		return ErrNameRequired
	}
	if !ruleTypes[r.RuleType] {
		return fmt.Errorf("%w: %q", ErrInvalidRuleType, r.RuleType)
	}
	if r.RuleType == RuleSpecificModelDown && (r.TargetModelID == nil || *r.TargetModelID == "") {
		return ErrTargetModelRequired
	}
	if r.RuleType == RuleModelUnavailableEverywhere && (r.TargetModelName == nil || *r.TargetModelName == "") {
		return ErrTargetNameRequired
	}
	return nil
}

// UpdateRuleRequest carries a partial rule update. Rule kind and targets
// are immutable after creation.
type UpdateRuleRequest struct {
	Name        *string `json:"name"`
	Enabled     *bool   `json:"enabled"`
	NotifyInApp *bool   `json:"notify_in_app"`
}

// ListFilter narrows an alert listing. Zero values mean "no filter".
type ListFilter struct {
	RuleID       string
	Acknowledged *bool
	Since        *time.Time
	Limit        int
	Offset       int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500

	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

// normalize clamps pagination to the documented bounds.
func (f *ListFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResponse is the paginated alert listing envelope. The
// unacknowledged count is global, not filtered.
type ListResponse struct {
	Items               []Alert `json:"items"`
	UnacknowledgedCount int     `json:"unacknowledged_count"`
	Limit               int     `json:"limit"`
	Offset              int     `json:"offset"`
}

// RecentResponse feeds the notification dropdown: the newest alerts in
// either state plus the unread badge count.
type RecentResponse struct {
	Items       []Alert `json:"items"`
	TotalUnread int     `json:"total_unread"`
}

// UnreadCountResponse is the badge count envelope.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
