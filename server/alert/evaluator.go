// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"arguslm/platform/server/monitoring"
	"arguslm/platform/shared/logger"
)

// Prometheus metrics
var (
	promAlertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arguslm_alerts_emitted_total",
			Help: "Total number of alerts raised by rule evaluation",
		},
		[]string{"rule_type"},
	)
)

func init() {
	prometheus.MustRegister(promAlertsEmitted)
}

// Evaluator runs the enabled rules against one monitoring tick's checks
// and raises alerts for matching conditions. It satisfies the monitoring
// service's alert sink.
type Evaluator struct {
	repo Repository
	log  *logger.Logger
}

// NewEvaluator creates an evaluator backed by the given repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, log: logger.New("alerts")}
}

// Evaluate processes every enabled rule against the batch of checks.
// Evaluation never acknowledges anything: a model recovering leaves its
// open incident in place for the operator.
func (e *Evaluator) Evaluate(ctx context.Context, checks []monitoring.Check) error {
	rules, err := e.repo.ListEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}

	created := 0
	for _, rule := range rules {
		n, err := e.evaluateRule(ctx, rule, checks)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		created += n
	}

	if created > 0 {
		e.log.Info("Alerts raised", map[string]interface{}{
			"count": created,
			"rules": len(rules),
		})
	}
	return nil
}

// evaluateRule dispatches one rule. Unknown kinds are skipped, as is
// performance_degradation until its threshold schema is defined.
func (e *Evaluator) evaluateRule(ctx context.Context, rule Rule, checks []monitoring.Check) (int, error) {
	switch rule.RuleType {
	case RuleAnyModelDown:
		return e.evaluateAnyModelDown(ctx, rule, checks)
	case RuleSpecificModelDown:
		return e.evaluateSpecificModelDown(ctx, rule, checks)
	case RuleModelUnavailableEverywhere:
		return e.evaluateUnavailableEverywhere(ctx, rule, checks)
	default:
		return 0, nil
	}
}

// evaluateAnyModelDown raises one alert per down model, deduplicated
// against open incidents.
func (e *Evaluator) evaluateAnyModelDown(ctx context.Context, rule Rule, checks []monitoring.Check) (int, error) {
	created := 0
	for _, check := range checks {
		if check.Status != monitoring.StatusDown {
			continue
		}

		modelID := check.ModelID
		open, err := e.repo.HasOpenIncident(ctx, rule.ID, &modelID)
		if err != nil {
			return created, err
		}
		if open {
			continue
		}

		message := "Model is down: " + checkError(check)
		if err := e.raise(ctx, rule, &modelID, message); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// evaluateSpecificModelDown raises at most one alert when the rule's
// target model is down in this batch.
func (e *Evaluator) evaluateSpecificModelDown(ctx context.Context, rule Rule, checks []monitoring.Check) (int, error) {
	if rule.TargetModelID == nil || *rule.TargetModelID == "" {
		return 0, nil
	}

	var target *monitoring.Check
	for i := range checks {
		if checks[i].ModelID == *rule.TargetModelID {
			target = &checks[i]
			break
		}
	}
	if target == nil || target.Status != monitoring.StatusDown {
		return 0, nil
	}

	open, err := e.repo.HasOpenIncident(ctx, rule.ID, &target.ModelID)
	if err != nil {
		return 0, err
	}
	if open {
		return 0, nil
	}

	message := "Monitored model is down: " + checkError(*target)
	if err := e.raise(ctx, rule, &target.ModelID, message); err != nil {
		return 0, err
	}
	return 1, nil
}

// evaluateUnavailableEverywhere raises a single cross-model alert when
// every provider instance of the target model name is down.
func (e *Evaluator) evaluateUnavailableEverywhere(ctx context.Context, rule Rule, checks []monitoring.Check) (int, error) {
	if rule.TargetModelName == nil || *rule.TargetModelName == "" {
		return 0, nil
	}

	matching, err := e.repo.ModelIDsMatching(ctx, *rule.TargetModelName)
	if err != nil {
		return 0, err
	}
	if len(matching) == 0 {
		return 0, nil
	}

	matched := make(map[string]bool, len(matching))
	for _, id := range matching {
		matched[id] = true
	}

	relevant := 0
	for _, check := range checks {
		if !matched[check.ModelID] {
			continue
		}
		relevant++
		if check.Status != monitoring.StatusDown {
			return 0, nil
		}
	}
	if relevant == 0 {
		return 0, nil
	}

	open, err := e.repo.HasOpenIncident(ctx, rule.ID, nil)
	if err != nil {
		return 0, err
	}
	if open {
		return 0, nil
	}

	message := fmt.Sprintf("Model '%s' is unavailable across all %d provider(s)", *rule.TargetModelName, relevant)
	if err := e.raise(ctx, rule, nil, message); err != nil {
		return 0, err
	}
	return 1, nil
}

// raise persists one new unacknowledged alert.
func (e *Evaluator) raise(ctx context.Context, rule Rule, modelID *string, message string) error {
	now := time.Now().UTC()
	alert := &Alert{
		ID:           uuid.New().String(),
		RuleID:       rule.ID,
		ModelID:      modelID,
		Message:      message,
		Acknowledged: false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.repo.CreateAlert(ctx, alert); err != nil {
		return err
	}

	promAlertsEmitted.WithLabelValues(rule.RuleType).Inc()
	e.log.Warn("Alert raised", map[string]interface{}{
		"rule_id":   rule.ID,
		"rule_type": rule.RuleType,
		"message":   message,
	})
	return nil
}

// checkError returns the probe's error text, or the generic fallback for
// down checks that carried none.
func checkError(check monitoring.Check) string {
	if check.Error != nil && *check.Error != "" {
		return *check.Error
	}
	return "Health check failed"
}
