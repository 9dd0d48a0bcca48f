// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"arguslm/platform/server/catalog"
	"arguslm/platform/server/invoke"
	"arguslm/platform/server/metrics"
	"arguslm/platform/server/promptpack"
	"arguslm/platform/server/throttle"
	"arguslm/platform/shared/logger"
)

// Prometheus metrics
var (
	promRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arguslm_benchmark_runs_total",
			Help: "Total number of benchmark runs by terminal status",
		},
		[]string{"status"},
	)
	promTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arguslm_benchmark_tasks_total",
			Help: "Total number of benchmark measurement tasks by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(promRunsTotal)
	prometheus.MustRegister(promTasksTotal)
}

// taskTimeout is the per-request deadline for one measurement. Benchmarks
// tolerate slower completions than health probes.
const taskTimeout = 60 * time.Second

// failTimeout bounds the best-effort failure bookkeeping once a run's own
// context is gone.
const failTimeout = 5 * time.Second

// ModelSource resolves catalog models with their provider accounts.
type ModelSource interface {
	GetWithProvider(ctx context.Context, ids []string) ([]catalog.ModelWithProvider, error)
}

// Decrypter opens the sealed credential blob of a provider account.
type Decrypter interface {
	Decrypt(blob string) (map[string]string, error)
}

// StreamClient is the streaming side of the provider invoker.
type StreamClient interface {
	CompleteStream(ctx context.Context, target invoke.Target, prompt string, opts invoke.Options, handler invoke.ChunkHandler) (*invoke.Completion, error)
}

// task is one planned measurement: a model, its run index, and whether the
// result is thrown away.
type task struct {
	model    catalog.ModelWithProvider
	runIndex int
	warmup   bool
}

// Engine plans and executes benchmark runs. Execution happens on
// background goroutines detached from the request; Close cancels them and
// waits. Read paths (list, detail, results, export) also live here.
type Engine struct {
	repo    Repository
	models  ModelSource
	vault   Decrypter
	invoker StreamClient
	limiter *throttle.Manager
	bus     Bus
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewEngine creates an engine with default dependencies.
func NewEngine(repo Repository, models ModelSource, vault Decrypter) *Engine {
	return NewEngineWithOptions(repo, models, vault, nil, nil, nil, nil)
}

// NewEngineWithOptions creates an engine with explicit dependencies. Nil
// invoker, limiter, bus, and log fall back to defaults.
func NewEngineWithOptions(repo Repository, models ModelSource, vault Decrypter, invoker StreamClient, limiter *throttle.Manager, bus Bus, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.New("benchmark")
	}
	if invoker == nil {
		invoker = invoke.NewInvoker(log)
	}
	if limiter == nil {
		limiter, _ = throttle.NewManager(throttle.DefaultLimits())
	}
	if bus == nil {
		bus = NewHub()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		repo:    repo,
		models:  models,
		vault:   vault,
		invoker: invoker,
		limiter: limiter,
		bus:     bus,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Bus returns the progress bus runs publish on.
func (e *Engine) Bus() Bus {
	return e.bus
}

// Close cancels every in-flight run and waits for their failure
// bookkeeping to finish. Runs interrupted this way are marked failed.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.log.Info("Benchmark engine closed", nil)
}

// StartRun validates the request, persists a pending run, and launches its
// execution in the background. It returns as soon as the run is accepted.
func (e *Engine) StartRun(ctx context.Context, req CreateRequest) (*StartResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	models, err := e.resolveModels(ctx, req.ModelIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	name := req.Name
	if name == "" {
		name = "Benchmark " + now.Format("2006-01-02 15:04")
	}

	run := &Run{
		ID:          uuid.New().String(),
		Name:        name,
		Status:      StatusPending,
		ModelIDs:    req.ModelIDs,
		PromptPack:  req.PromptPack,
		TriggeredBy: "user",
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	cfg := req.config()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go e.execute(run, models, cfg)

	e.log.Info("Benchmark run accepted", map[string]interface{}{
		"run_id":      run.ID,
		"models":      len(models),
		"num_runs":    cfg.NumRuns,
		"warmup_runs": cfg.WarmupRuns,
		"prompt_pack": run.PromptPack,
	})

	return &StartResponse{
		ID:      run.ID,
		Status:  StatusPending,
		Message: "Benchmark run started",
	}, nil
}

// resolveModels loads the requested models with providers, preserving
// request order. Unknown ids produce a ModelsNotFoundError listing them.
func (e *Engine) resolveModels(ctx context.Context, ids []string) ([]catalog.ModelWithProvider, error) {
	found, err := e.models.GetWithProvider(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve benchmark models: %w", err)
	}

	byID := make(map[string]catalog.ModelWithProvider, len(found))
	for _, model := range found {
		byID[model.ID] = model
	}

	var missing []string
	ordered := make([]catalog.ModelWithProvider, 0, len(ids))
	for _, id := range ids {
		model, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, model)
	}
	if len(missing) > 0 {
		return nil, &ModelsNotFoundError{IDs: missing}
	}

	return ordered, nil
}

// execute drives one run to a terminal state. It owns the status
// transitions and the progress events.
func (e *Engine) execute(run *Run, models []catalog.ModelWithProvider, cfg Config) {
	defer e.wg.Done()

	started := time.Now()

	if err := e.repo.SetRunStatus(e.ctx, run.ID, StatusRunning, nil); err != nil {
		e.fail(run.ID, err)
		return
	}
	e.bus.Publish(run.ID, progressEvent())

	results, err := e.executeTasks(e.ctx, run, models, cfg)
	if err != nil {
		e.fail(run.ID, err)
		return
	}

	if err := e.repo.InsertResults(e.ctx, results); err != nil {
		e.fail(run.ID, err)
		return
	}

	now := time.Now().UTC()
	if err := e.repo.SetRunStatus(e.ctx, run.ID, StatusCompleted, &now); err != nil {
		e.fail(run.ID, err)
		return
	}

	promRunsTotal.WithLabelValues(StatusCompleted).Inc()
	e.bus.Publish(run.ID, completeEvent())

	e.log.InfoWithDuration("Benchmark run completed", float64(time.Since(started).Milliseconds()), map[string]interface{}{
		"run_id":  run.ID,
		"results": len(results),
	})
}

// fail marks a run failed and emits the terminal error event. The
// bookkeeping runs on a fresh context so it still happens when the run was
// cancelled; its own failures are logged and swallowed.
func (e *Engine) fail(runID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), failTimeout)
	defer cancel()

	now := time.Now().UTC()
	if err := e.repo.SetRunStatus(ctx, runID, StatusFailed, &now); err != nil {
		e.log.ErrorWithErr("Failed to mark benchmark run failed", err, map[string]interface{}{
			"run_id": runID,
		})
	}

	promRunsTotal.WithLabelValues(StatusFailed).Inc()
	e.bus.Publish(runID, errorEvent(cause.Error()))

	e.log.ErrorWithErr("Benchmark run failed", cause, map[string]interface{}{
		"run_id": runID,
	})
}

// executeTasks runs the full task plan concurrently and returns the
// measured results in planning order, warmups dropped. A cancelled context
// discards all partial results.
func (e *Engine) executeTasks(ctx context.Context, run *Run, models []catalog.ModelWithProvider, cfg Config) ([]Result, error) {
	tasks := planTasks(models, cfg)
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			results[i] = e.runTask(ctx, run, cfg, t)
		}(i, t)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]Result, 0, len(models)*cfg.NumRuns)
	base := time.Now().UTC()
	for i, t := range tasks {
		if t.warmup {
			continue
		}
		res := results[i]
		res.ID = uuid.New().String()
		res.RunID = run.ID
		// Strictly increasing timestamps keep read-back in planning order.
		res.CreatedAt = base.Add(time.Duration(len(kept)) * time.Microsecond)
		kept = append(kept, res)
	}
	return kept, nil
}

// planTasks expands models into |models|·(warmup+num) labelled tasks, in
// model order with each model's warmups first.
func planTasks(models []catalog.ModelWithProvider, cfg Config) []task {
	tasks := make([]task, 0, len(models)*(cfg.WarmupRuns+cfg.NumRuns))
	for _, model := range models {
		for idx := 0; idx < cfg.WarmupRuns+cfg.NumRuns; idx++ {
			tasks = append(tasks, task{
				model:    model,
				runIndex: idx,
				warmup:   idx < cfg.WarmupRuns,
			})
		}
	}
	return tasks
}

// runTask executes one measurement. Task-level failures become an errored
// all-zero result; they never abort the run. Non-warmup outcomes are
// published as result events.
func (e *Engine) runTask(ctx context.Context, run *Run, cfg Config, t task) Result {
	bundle, err := e.measure(ctx, run.PromptPack, t.model, cfg.MaxTokens)
	if err != nil {
		promTasksTotal.WithLabelValues("error").Inc()
		e.log.ErrorWithErr("Benchmark task failed", err, map[string]interface{}{
			"run_id":    run.ID,
			"model_id":  t.model.ModelID,
			"provider":  t.model.ProviderType,
			"run_index": t.runIndex,
			"warmup":    t.warmup,
		})

		msg := err.Error()
		if !t.warmup {
			e.bus.Publish(run.ID, resultEvent(t.model.ID, 0, 0))
		}
		return Result{ModelID: t.model.ID, Error: &msg}
	}

	promTasksTotal.WithLabelValues("success").Inc()
	if !t.warmup {
		e.bus.Publish(run.ID, resultEvent(t.model.ID, bundle.TTFTMS, bundle.TPS))
	}

	return Result{
		ModelID:          t.model.ID,
		TTFTMS:           bundle.TTFTMS,
		TPS:              bundle.TPS,
		TPSExcludingTTFT: bundle.TPSExcludingTTFT,
		TotalLatencyMS:   bundle.TotalLatencyMS,
		InputTokens:      bundle.InputTokens,
		OutputTokens:     bundle.OutputTokens,
		EstimatedCost:    bundle.EstimatedCost,
	}
}

// measure streams one completion under the throttle and reduces it to a
// metric bundle.
func (e *Engine) measure(ctx context.Context, promptPack string, model catalog.ModelWithProvider, maxTokens int) (*metrics.Bundle, error) {
	release, err := e.limiter.Acquire(ctx, model.ProviderType, model.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	credentials, err := e.vault.Decrypt(model.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt provider credentials: %w", err)
	}

	prompt, err := promptpack.Prompt(promptPack)
	if err != nil {
		return nil, err
	}

	target := invoke.Target{
		Kind:        model.ProviderType,
		Model:       model.ModelID,
		Credentials: credentials,
	}

	opts := invoke.DefaultOptions()
	opts.MaxTokens = maxTokens
	opts.Timeout = taskTimeout

	collector := metrics.NewCollector()
	collector.Start()

	completion, err := e.invoker.CompleteStream(ctx, target, prompt, opts, func(chunk invoke.Chunk) error {
		if chunk.Restart {
			collector.Reset()
			return nil
		}
		collector.RecordToken(chunk.Content)
		return nil
	})
	if err != nil {
		return nil, err
	}

	bundle := collector.Finalize(model.ModelID, completion.Usage.InputTokens, completion.Usage.OutputTokens)
	return &bundle, nil
}

// GetRun returns one run with its result count.
func (e *Engine) GetRun(ctx context.Context, id string) (*Run, error) {
	return e.repo.GetRun(ctx, id)
}

// List returns one page of runs, newest first.
func (e *Engine) List(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	filter.normalize()

	runs, total, err := e.repo.ListRuns(ctx, filter)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []Run{}
	}

	return &ListResponse{
		Runs:    runs,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}

// Detail returns one run with its results and percentile statistics,
// aggregate and per model.
func (e *Engine) Detail(ctx context.Context, id string) (*DetailResponse, error) {
	run, err := e.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	results, err := e.repo.ListResults(ctx, id)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []Result{}
	}

	blocks := modelStatistics(results)
	if blocks == nil {
		blocks = []ModelStatistics{}
	}

	return &DetailResponse{
		Run:             *run,
		Results:         results,
		Statistics:      computeStatistics(results),
		ModelStatistics: blocks,
	}, nil
}

// Results returns a run's results in planning order.
func (e *Engine) Results(ctx context.Context, runID string) (*ResultsResponse, error) {
	if _, err := e.repo.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	results, err := e.repo.ListResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []Result{}
	}

	return &ResultsResponse{Results: results, Total: len(results)}, nil
}

// ExportData returns the export envelope for one run.
func (e *Engine) ExportData(ctx context.Context, runID string) (*Export, error) {
	run, err := e.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := e.repo.ExportRows(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ExportRow{}
	}

	return &Export{
		RunID:       run.ID,
		RunName:     run.Name,
		PromptPack:  run.PromptPack,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Results:     rows,
	}, nil
}
