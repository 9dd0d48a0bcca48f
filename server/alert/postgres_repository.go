// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ruleColumns = `id, name, rule_type, enabled, target_model_id, target_model_name,
		       threshold_config, notify_in_app, notify_email, notify_webhook, webhook_url,
		       created_at, updated_at`

const alertColumns = `id, rule_id, model_id, message, acknowledged, created_at, updated_at`

// CreateRule persists a new alert rule.
func (r *PostgresRepository) CreateRule(ctx context.Context, rule *Rule) error {
	threshold, err := marshalThreshold(rule.ThresholdConfig)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alert_rules (id, name, rule_type, enabled, target_model_id, target_model_name,
		                         threshold_config, notify_in_app, notify_email, notify_webhook,
		                         webhook_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.RuleType,
		rule.Enabled,
		rule.TargetModelID,
		rule.TargetModelName,
		threshold,
		rule.NotifyInApp,
		rule.NotifyEmail,
		rule.NotifyWebhook,
		rule.WebhookURL,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	return nil
}

// ListRules retrieves every rule, newest first.
func (r *PostgresRepository) ListRules(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// GetRule retrieves a rule by ID.
func (r *PostgresRepository) GetRule(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}

	return rule, nil
}

// UpdateRule persists a rule's mutable fields.
func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *Rule) error {
	query := `
		UPDATE alert_rules
		SET name = $2, enabled = $3, notify_in_app = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Enabled,
		rule.NotifyInApp,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// DeleteRule removes a rule; its alerts cascade.
func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// ListEnabledRules retrieves every enabled rule for evaluation.
func (r *PostgresRepository) ListEnabledRules(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE enabled = TRUE ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled alert rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// CreateAlert persists a new alert.
func (r *PostgresRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO alerts (id, rule_id, model_id, message, acknowledged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.RuleID,
		alert.ModelID,
		alert.Message,
		alert.Acknowledged,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// ListAlerts retrieves alerts matching the filter, newest first.
func (r *PostgresRepository) ListAlerts(ctx context.Context, filter ListFilter) ([]Alert, error) {
	where, args := buildAlertFilter(filter)

	query := `SELECT ` + alertColumns + ` FROM alerts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListRecent retrieves the newest alerts in either state.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// CountUnacknowledged returns the number of open alerts.
func (r *PostgresRepository) CountUnacknowledged(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE acknowledged = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unacknowledged alerts: %w", err)
	}
	return count, nil
}

// Acknowledge marks an alert acknowledged and returns the updated row.
func (r *PostgresRepository) Acknowledge(ctx context.Context, id string) (*Alert, error) {
	query := `
		UPDATE alerts
		SET acknowledged = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING ` + alertColumns

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id, time.Now().UTC()))
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	return alert, nil
}

// HasOpenIncident reports whether an unacknowledged alert exists for the
// rule/model pair.
func (r *PostgresRepository) HasOpenIncident(ctx context.Context, ruleID string, modelID *string) (bool, error) {
	var (
		query string
		args  []interface{}
	)
	if modelID != nil {
		query = `SELECT EXISTS(SELECT 1 FROM alerts WHERE rule_id = $1 AND model_id = $2 AND acknowledged = FALSE)`
		args = []interface{}{ruleID, *modelID}
	} else {
		query = `SELECT EXISTS(SELECT 1 FROM alerts WHERE rule_id = $1 AND model_id IS NULL AND acknowledged = FALSE)`
		args = []interface{}{ruleID}
	}

	var open bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&open); err != nil {
		return false, fmt.Errorf("failed to check open incident: %w", err)
	}
	return open, nil
}

// ModelIDsMatching returns the ids of models whose provider model_id
// contains the fragment, case-insensitively.
func (r *PostgresRepository) ModelIDsMatching(ctx context.Context, fragment string) ([]string, error) {
	query := `SELECT id FROM models WHERE model_id ILIKE $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, "%"+fragment+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to match models: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan model id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate model ids: %w", err)
	}

	return ids, nil
}

// buildAlertFilter translates a ListFilter into a WHERE clause and its
// positional arguments.
func buildAlertFilter(filter ListFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.RuleID != "" {
		args = append(args, filter.RuleID)
		conditions = append(conditions, fmt.Sprintf("rule_id = $%d", len(args)))
	}
	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		conditions = append(conditions, fmt.Sprintf("acknowledged = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// scanner is the shared subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row scanner) (*Rule, error) {
	var rule Rule
	var thresholdRaw []byte

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.RuleType,
		&rule.Enabled,
		&rule.TargetModelID,
		&rule.TargetModelName,
		&thresholdRaw,
		&rule.NotifyInApp,
		&rule.NotifyEmail,
		&rule.NotifyWebhook,
		&rule.WebhookURL,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(thresholdRaw) > 0 {
		if err := json.Unmarshal(thresholdRaw, &rule.ThresholdConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal threshold_config: %w", err)
		}
	}

	return &rule, nil
}

func collectRules(rows *sql.Rows) ([]Rule, error) {
	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rules: %w", err)
	}
	return rules, nil
}

func scanAlert(row scanner) (*Alert, error) {
	var alert Alert
	err := row.Scan(
		&alert.ID,
		&alert.RuleID,
		&alert.ModelID,
		&alert.Message,
		&alert.Acknowledged,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]Alert, error) {
	var alerts []Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// marshalThreshold serialises the reserved threshold mapping, defaulting
// to null so absent configs stay absent.
func marshalThreshold(threshold map[string]interface{}) (interface{}, error) {
	if threshold == nil {
		return nil, nil
	}
	raw, err := json.Marshal(threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal threshold_config: %w", err)
	}
	return raw, nil
}
