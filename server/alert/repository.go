// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import "context"

// Repository defines the persistence interface for alert rules and alerts.
type Repository interface {
	// CreateRule persists a new alert rule.
	CreateRule(ctx context.Context, rule *Rule) error

	// ListRules retrieves every rule, newest first.
	ListRules(ctx context.Context) ([]Rule, error)

	// GetRule retrieves a rule by ID.
	GetRule(ctx context.Context, id string) (*Rule, error)

	// UpdateRule persists a rule's mutable fields (name, enabled,
	// notify_in_app).
	UpdateRule(ctx context.Context, rule *Rule) error

	// DeleteRule removes a rule; its alerts cascade.
	DeleteRule(ctx context.Context, id string) error

	// ListEnabledRules retrieves every enabled rule for evaluation.
	ListEnabledRules(ctx context.Context) ([]Rule, error)

	// CreateAlert persists a new alert.
	CreateAlert(ctx context.Context, alert *Alert) error

	// ListAlerts retrieves alerts matching the filter, newest first.
	ListAlerts(ctx context.Context, filter ListFilter) ([]Alert, error)

	// ListRecent retrieves the newest alerts in either state.
	ListRecent(ctx context.Context, limit int) ([]Alert, error)

	// CountUnacknowledged returns the number of open alerts.
	CountUnacknowledged(ctx context.Context) (int, error)

	// Acknowledge marks an alert acknowledged and returns the updated
	// row. Acknowledging an already-acknowledged alert is a no-op.
	Acknowledge(ctx context.Context, id string) (*Alert, error)

	// HasOpenIncident reports whether an unacknowledged alert exists for
	// the rule/model pair. A nil modelID matches only alerts whose
	// model_id is null.
	HasOpenIncident(ctx context.Context, ruleID string, modelID *string) (bool, error)

	// ModelIDsMatching returns the ids of models whose provider model_id
	// contains the fragment, case-insensitively.
	ModelIDsMatching(ctx context.Context, fragment string) ([]string, error)
}
