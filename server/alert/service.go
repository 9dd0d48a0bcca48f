// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package alert

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arguslm/platform/shared/logger"
)

// Service implements the alert rule and alert business logic
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new alert service
func NewService(repo Repository) *Service {
	return NewServiceWithOptions(repo, nil)
}

// NewServiceWithOptions creates an alert service with explicit dependencies.
func NewServiceWithOptions(repo Repository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("alerts")
	}
	return &Service{repo: repo, log: log}
}

// CreateRule validates and persists a new alert rule.
func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule := &Rule{
		ID:              uuid.New().String(),
		Name:            req.Name,
		RuleType:        req.RuleType,
		Enabled:         true,
		TargetModelID:   req.TargetModelID,
		TargetModelName: req.TargetModelName,
		NotifyInApp:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.NotifyInApp != nil {
		rule.NotifyInApp = *req.NotifyInApp
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info("Alert rule created", map[string]interface{}{
		"rule_id":   rule.ID,
		"rule_type": rule.RuleType,
		"enabled":   rule.Enabled,
	})

	return rule, nil
}

// ListRules retrieves every rule, newest first.
func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

// UpdateRule applies a partial update. Rule kind and targets are
// immutable after creation.
func (s *Service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.NotifyInApp != nil {
		rule.NotifyInApp = *req.NotifyInApp
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info("Alert rule updated", map[string]interface{}{
		"rule_id": rule.ID,
		"enabled": rule.Enabled,
	})

	return rule, nil
}

// DeleteRule removes a rule and, via cascade, its alerts.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return err
	}

	s.log.Info("Alert rule deleted", map[string]interface{}{
		"rule_id": id,
	})
	return nil
}

// ListAlerts retrieves alerts matching the filter plus the global count
// of open alerts.
func (s *Service) ListAlerts(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	filter.normalize()

	alerts, err := s.repo.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []Alert{}
	}

	unacknowledged, err := s.repo.CountUnacknowledged(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResponse{
		Items:               alerts,
		UnacknowledgedCount: unacknowledged,
		Limit:               filter.Limit,
		Offset:              filter.Offset,
	}, nil
}

// UnreadCount returns the notification badge count.
func (s *Service) UnreadCount(ctx context.Context) (*UnreadCountResponse, error) {
	count, err := s.repo.CountUnacknowledged(ctx)
	if err != nil {
		return nil, err
	}
	return &UnreadCountResponse{Count: count}, nil
}

// RecentAlerts returns the newest alerts in either state for the
// notification dropdown.
func (s *Service) RecentAlerts(ctx context.Context, limit int) (*RecentResponse, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	alerts, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []Alert{}
	}

	unread, err := s.repo.CountUnacknowledged(ctx)
	if err != nil {
		return nil, err
	}

	return &RecentResponse{Items: alerts, TotalUnread: unread}, nil
}

// Acknowledge marks an alert acknowledged. Acknowledging twice is
// harmless and returns the alert unchanged.
func (s *Service) Acknowledge(ctx context.Context, id string) (*Alert, error) {
	alert, err := s.repo.Acknowledge(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("Alert acknowledged", map[string]interface{}{
		"alert_id": alert.ID,
		"rule_id":  alert.RuleID,
	})
	return alert, nil
}
