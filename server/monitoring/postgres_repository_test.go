// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func configRows(cfgs ...Config) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "interval_minutes", "prompt_pack", "enabled", "last_run_at", "created_at", "updated_at",
	})
	for _, c := range cfgs {
		rows.AddRow(c.ID, c.IntervalMinutes, c.PromptPack, c.Enabled, c.LastRunAt, c.CreatedAt, c.UpdatedAt)
	}
	return rows
}

func TestRepositoryGetConfig(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM monitoring_configs").
		WillReturnRows(configRows(Config{
			ID: "cfg-1", IntervalMinutes: 15, PromptPack: "health_check",
			Enabled: true, CreatedAt: now, UpdatedAt: now,
		}))

	cfg, err := repo.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if cfg.ID != "cfg-1" || cfg.IntervalMinutes != 15 || !cfg.Enabled {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.LastRunAt != nil {
		t.Errorf("expected nil last_run_at, got %v", cfg.LastRunAt)
	}
}

func TestRepositoryGetConfigCreatesDefault(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT .+ FROM monitoring_configs").
		WillReturnRows(configRows())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitoring_configs")).
		WithArgs(sqlmock.AnyArg(), DefaultIntervalMinutes, "health_check", true,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cfg, err := repo.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if cfg.IntervalMinutes != DefaultIntervalMinutes || cfg.PromptPack != "health_check" || !cfg.Enabled {
		t.Errorf("unexpected default config: %+v", cfg)
	}
	if cfg.ID == "" {
		t.Error("default config must get an id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryUpdateConfig(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE monitoring_configs")).
		WithArgs("cfg-1", 30, "reasoning", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := &Config{ID: "cfg-1", IntervalMinutes: 30, PromptPack: "reasoning", Enabled: true}
	if err := repo.UpdateConfig(context.Background(), cfg); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryUpdateConfigNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE monitoring_configs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateConfig(context.Background(), &Config{ID: "missing"})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestRepositoryTouchLastRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE monitoring_configs")).
		WithArgs("cfg-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLastRun(context.Background(), "cfg-1", at); err != nil {
		t.Fatalf("TouchLastRun failed: %v", err)
	}
}

func TestRepositoryTouchLastRunNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE monitoring_configs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TouchLastRun(context.Background(), "missing", time.Now().UTC())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestRepositoryInsertChecks(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now().UTC()
	latency := 412.5
	ttft := 80.0
	tps := 40.0
	tokens := 30
	errMsg := "connection timed out"

	checks := []Check{
		{ID: "chk-1", ModelID: "m1", Status: StatusUp, LatencyMS: &latency, TTFTMS: &ttft,
			TPS: &tps, OutputTokens: &tokens, CreatedAt: now},
		{ID: "chk-2", ModelID: "m2", Status: StatusDown, Error: &errMsg, CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uptime_checks")).
		WithArgs("chk-1", "m1", StatusUp, 412.5, 80.0, 40.0, 30, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uptime_checks")).
		WithArgs("chk-2", "m2", StatusDown, nil, nil, nil, nil, "connection timed out", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.InsertChecks(context.Background(), checks); err != nil {
		t.Fatalf("InsertChecks failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryInsertChecksRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uptime_checks")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.InsertChecks(context.Background(), []Check{{ID: "chk-1", ModelID: "m1", Status: StatusDown}})
	if err == nil {
		t.Fatal("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryInsertChecksEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	if err := repo.InsertChecks(context.Background(), nil); err != nil {
		t.Fatalf("InsertChecks failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statements expected: %v", err)
	}
}

func TestRepositoryListChecksAppliesFilter(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM uptime_checks c")).
		WithArgs("m1", StatusUp).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows([]string{
		"id", "model_id", "status", "latency_ms", "error", "created_at", "model_name",
	}).
		AddRow("chk-1", "m1", StatusUp, 412.5, nil, now, "GPT-4o").
		AddRow("chk-2", "m1", StatusUp, 398.0, nil, now.Add(-time.Minute), nil)

	mock.ExpectQuery("SELECT c.id, .+ FROM uptime_checks c").
		WithArgs("m1", StatusUp, 50, 0).
		WillReturnRows(rows)

	items, total, err := repo.ListChecks(context.Background(), HistoryFilter{
		ModelID:     "m1",
		Status:      StatusUp,
		EnabledOnly: true,
		Limit:       50,
	})
	if err != nil {
		t.Fatalf("ListChecks failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("unexpected page: total=%d len=%d", total, len(items))
	}
	if items[0].ModelName != "GPT-4o" {
		t.Errorf("model name not joined: %s", items[0].ModelName)
	}
	if items[1].ModelName != "Unknown" {
		t.Errorf("expected Unknown fallback, got %s", items[1].ModelName)
	}
	if items[0].LatencyMS == nil || *items[0].LatencyMS != 412.5 {
		t.Errorf("latency not scanned: %v", items[0].LatencyMS)
	}
}

func TestRepositoryListChecksSinceFilter(t *testing.T) {
	repo, mock := newMockRepository(t)

	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM uptime_checks c")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT c.id, .+ FROM uptime_checks c").
		WithArgs(since, 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "model_id", "status", "latency_ms", "error", "created_at", "model_name",
		}))

	items, total, err := repo.ListChecks(context.Background(), HistoryFilter{Since: &since, Limit: 100})
	if err != nil {
		t.Fatalf("ListChecks failed: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("expected empty page, got total=%d len=%d", total, len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryExportChecks(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"model_name", "provider_type", "status", "latency_ms", "error", "created_at",
	}).
		AddRow("GPT-4o", "openai", StatusUp, 412.5, nil, now).
		AddRow(nil, nil, StatusDown, nil, "gone", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT COALESCE.+ FROM uptime_checks c").
		WillReturnRows(rows)

	items, err := repo.ExportChecks(context.Background(), HistoryFilter{})
	if err != nil {
		t.Fatalf("ExportChecks failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
	if items[0].ModelName != "GPT-4o" || items[0].Provider != "openai" {
		t.Errorf("joined names wrong: %+v", items[0])
	}
	if items[1].ModelName != "Unknown" || items[1].Provider != "Unknown" {
		t.Errorf("expected Unknown fallbacks, got %+v", items[1])
	}
	if items[1].Error == nil || *items[1].Error != "gone" {
		t.Errorf("error not scanned: %v", items[1].Error)
	}
}
