// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arguslm/platform/server/catalog"
	"arguslm/platform/server/promptpack"
	"arguslm/platform/server/throttle"
	"arguslm/platform/shared/logger"
)

// ModelSource lists the models enrolled in monitoring.
type ModelSource interface {
	ListMonitored(ctx context.Context) ([]catalog.ModelWithProvider, error)
}

// Decrypter opens the sealed credential blob of a provider account.
type Decrypter interface {
	Decrypt(blob string) (map[string]string, error)
}

// Prober runs one health probe. *Checker is the production implementation.
type Prober interface {
	Check(ctx context.Context, model catalog.ModelWithProvider, credentials map[string]string, promptPack string) Check
}

// AlertSink receives each tick's freshly written checks for rule
// evaluation.
type AlertSink interface {
	Evaluate(ctx context.Context, checks []Check) error
}

// Service owns the monitoring configuration, the periodic tick, and the
// uptime history.
type Service struct {
	repo      Repository
	models    ModelSource
	vault     Decrypter
	checker   Prober
	limiter   *throttle.Manager
	alerts    AlertSink
	scheduler *Scheduler
	log       *logger.Logger
}

// NewService creates a monitoring service with default dependencies.
func NewService(repo Repository, models ModelSource, vault Decrypter) *Service {
	return NewServiceWithOptions(repo, models, vault, nil, nil, nil, nil)
}

// NewServiceWithOptions creates a monitoring service with explicit
// dependencies. Nil checker, limiter, and log fall back to defaults; a nil
// alerts sink disables rule evaluation.
func NewServiceWithOptions(repo Repository, models ModelSource, vault Decrypter, checker Prober, limiter *throttle.Manager, alerts AlertSink, log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("monitoring")
	}
	if checker == nil {
		checker = NewChecker(nil, log)
	}
	if limiter == nil {
		limiter, _ = throttle.NewManager(throttle.DefaultLimits())
	}

	s := &Service{
		repo:    repo,
		models:  models,
		vault:   vault,
		checker: checker,
		limiter: limiter,
		alerts:  alerts,
		log:     log,
	}
	s.scheduler = NewScheduler(s.runTick, log)
	return s
}

// Start reads the persisted configuration and installs the periodic job.
func (s *Service) Start(ctx context.Context) error {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	s.scheduler.Configure(cfg.IntervalMinutes, cfg.Enabled)
	return nil
}

// Stop removes the periodic job, waiting for a tick already underway.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// SchedulerRunning reports whether the periodic job is installed.
func (s *Service) SchedulerRunning() bool {
	return s.scheduler.Running()
}

// GetConfig returns the configuration, creating defaults on first read.
func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	return s.repo.GetConfig(ctx)
}

// UpdateConfig applies a partial configuration update and reconfigures the
// scheduler once the update is persisted.
func (s *Service) UpdateConfig(ctx context.Context, req UpdateConfigRequest) (*Config, error) {
	if req.IntervalMinutes != nil && *req.IntervalMinutes < 1 {
		return nil, ErrInvalidInterval
	}
	if req.PromptPack != nil && !promptpack.Valid(*req.PromptPack) {
		return nil, invalidPromptPackError()
	}

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	if req.IntervalMinutes != nil {
		cfg.IntervalMinutes = *req.IntervalMinutes
	}
	if req.PromptPack != nil {
		cfg.PromptPack = *req.PromptPack
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := s.repo.UpdateConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.scheduler.Configure(cfg.IntervalMinutes, cfg.Enabled)

	s.log.Info("Monitoring config updated", map[string]interface{}{
		"interval_minutes": cfg.IntervalMinutes,
		"prompt_pack":      cfg.PromptPack,
		"enabled":          cfg.Enabled,
	})

	return cfg, nil
}

// TriggerRun queues one manual monitoring tick and returns immediately.
func (s *Service) TriggerRun(ctx context.Context) RunResponse {
	runID := uuid.New().String()
	go s.runTick()

	s.log.Info("Monitoring run queued", map[string]interface{}{"run_id": runID})

	return RunResponse{
		RunID:   runID,
		Status:  "queued",
		Message: "Monitoring run queued for execution",
	}
}

// History returns one page of uptime checks, newest first.
func (s *Service) History(ctx context.Context, filter HistoryFilter) (*HistoryResponse, error) {
	filter.normalize()

	items, total, err := s.repo.ListChecks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []HistoryRow{}
	}

	return &HistoryResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Export returns every uptime check matching the filter, newest first.
func (s *Service) Export(ctx context.Context, filter HistoryFilter) ([]ExportRow, error) {
	rows, err := s.repo.ExportChecks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ExportRow{}
	}
	return rows, nil
}

// runTick is one monitoring pass: probe every monitored model, persist the
// checks, evaluate alert rules, stamp last_run_at. Failures are logged and
// swallowed; the scheduler must survive any tick.
func (s *Service) runTick() {
	ctx := context.Background()
	started := time.Now()

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		s.log.ErrorWithErr("Monitoring tick failed to load config", err, nil)
		return
	}

	models, err := s.models.ListMonitored(ctx)
	if err != nil {
		s.log.ErrorWithErr("Monitoring tick failed to list models", err, nil)
		return
	}

	checks := s.probeAll(ctx, models, cfg.PromptPack)

	if err := s.repo.InsertChecks(ctx, checks); err != nil {
		s.log.ErrorWithErr("Monitoring tick failed to persist checks", err, nil)
		return
	}

	if s.alerts != nil && len(checks) > 0 {
		if err := s.alerts.Evaluate(ctx, checks); err != nil {
			s.log.ErrorWithErr("Alert evaluation failed", err, nil)
		}
	}

	if err := s.repo.TouchLastRun(ctx, cfg.ID, time.Now().UTC()); err != nil {
		s.log.ErrorWithErr("Monitoring tick failed to stamp last run", err, nil)
	}

	s.log.InfoWithDuration("Monitoring tick completed", float64(time.Since(started).Milliseconds()), map[string]interface{}{
		"models_checked": len(models),
	})
}

// probeAll checks every model concurrently, each gated by the throttle
// manager. Results come back in input order.
func (s *Service) probeAll(ctx context.Context, models []catalog.ModelWithProvider, promptPack string) []Check {
	checks := make([]Check, len(models))
	var wg sync.WaitGroup

	for i, model := range models {
		wg.Add(1)
		go func(i int, model catalog.ModelWithProvider) {
			defer wg.Done()
			checks[i] = s.probe(ctx, model, promptPack)
		}(i, model)
	}

	wg.Wait()
	return checks
}

// probe runs one throttled health check. Decrypt and throttle failures are
// reported as down checks so a bad account cannot stall the whole tick.
func (s *Service) probe(ctx context.Context, model catalog.ModelWithProvider, promptPack string) Check {
	release, err := s.limiter.Acquire(ctx, model.ProviderType, model.ID)
	if err != nil {
		return downCheck(model.ID, err)
	}
	defer release()

	credentials, err := s.vault.Decrypt(model.EncryptedCredentials)
	if err != nil {
		s.log.ErrorWithErr("Failed to decrypt provider credentials", err, map[string]interface{}{
			"model_id": model.ModelID,
			"provider": model.ProviderType,
		})
		return downCheck(model.ID, err)
	}

	return s.checker.Check(ctx, model, credentials, promptPack)
}

// invalidPromptPackError lists the valid pack ids in the error detail.
func invalidPromptPackError() error {
	packs := promptpack.List()
	ids := make([]string, 0, len(packs))
	for _, p := range packs {
		ids = append(ids, p.ID)
	}
	return fmt.Errorf("%w: %s", ErrInvalidPromptPack, strings.Join(ids, ", "))
}
