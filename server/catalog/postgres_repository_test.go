// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package catalog

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

func modelRows(models ...Model) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "provider_account_id", "model_id", "custom_name", "source",
		"enabled_for_monitoring", "enabled_for_benchmark", "metadata",
		"created_at", "updated_at", "provider_name",
	})
	for _, m := range models {
		rows.AddRow(m.ID, m.ProviderAccountID, m.ModelID, m.CustomName, m.Source,
			m.EnabledForMonitoring, m.EnabledForBenchmark, []byte(`{"context_window":128000}`),
			m.CreatedAt, m.UpdatedAt, m.ProviderName)
	}
	return rows
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now().UTC()
	name := "Mine"
	model := &Model{
		ID:                  "model-1",
		ProviderAccountID:   "prov-1",
		ModelID:             "my-model",
		CustomName:          &name,
		Source:              "manual",
		EnabledForBenchmark: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO models")).
		WithArgs("model-1", "prov-1", "my-model", &name, "manual", false, true, []byte("{}"), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), model); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT .+ FROM models m").
		WithArgs("missing").
		WillReturnRows(modelRows())

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestRepositoryGetJoinsProviderName(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT .+ FROM models m\\s+LEFT JOIN provider_accounts p").
		WithArgs("model-1").
		WillReturnRows(modelRows(Model{
			ID: "model-1", ProviderAccountID: "prov-1", ModelID: "gpt-4o",
			Source: "discovered", EnabledForBenchmark: true, ProviderName: "Production",
		}))

	model, err := repo.Get(context.Background(), "model-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if model.ProviderName != "Production" {
		t.Errorf("provider_name = %q, want Production", model.ProviderName)
	}
	if model.Metadata["context_window"] != float64(128000) {
		t.Errorf("metadata not unmarshaled: %v", model.Metadata)
	}
}

func TestRepositoryListBuildsFilters(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM models m WHERE m.provider_account_id = $1 AND (LOWER(m.model_id) LIKE $2 OR LOWER(COALESCE(m.custom_name, '')) LIKE $2)")).
		WithArgs("prov-1", "%haiku%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("SELECT .+ FROM models m\\s+LEFT JOIN provider_accounts p .+ ORDER BY m.created_at ASC LIMIT \\$3 OFFSET \\$4").
		WithArgs("prov-1", "%haiku%", 50, 0).
		WillReturnRows(modelRows(Model{
			ID: "model-2", ProviderAccountID: "prov-1", ModelID: "claude-3-haiku",
			Source: "discovered", EnabledForBenchmark: true,
		}))

	models, total, err := repo.List(context.Background(), ListFilter{
		ProviderID: "prov-1",
		Search:     "HAIKU",
		Limit:      50,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(models) != 1 || models[0].ModelID != "claude-3-haiku" {
		t.Errorf("unexpected result: total=%d models=%+v", total, models)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryUpdateNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE models")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &Model{ID: "missing"})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestRepositoryListMonitored(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{
		"id", "provider_account_id", "model_id", "custom_name", "source",
		"enabled_for_monitoring", "enabled_for_benchmark", "metadata",
		"created_at", "updated_at", "provider_name", "provider_type", "credentials_encrypted",
	}).AddRow("model-1", "prov-1", "gpt-4o", nil, "discovered",
		true, true, []byte("{}"), time.Now(), time.Now(), "Production", "openai", "sealed-blob")

	mock.ExpectQuery("SELECT .+ FROM models m\\s+JOIN provider_accounts p .+ WHERE m.enabled_for_monitoring = TRUE").
		WillReturnRows(rows)

	models, err := repo.ListMonitored(context.Background())
	if err != nil {
		t.Fatalf("ListMonitored failed: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].ProviderType != "openai" || models[0].EncryptedCredentials != "sealed-blob" {
		t.Errorf("provider fields not joined: %+v", models[0])
	}
}

func TestRepositoryGetWithProviderEmptyIDs(t *testing.T) {
	repo, _ := newMockRepository(t)

	models, err := repo.GetWithProvider(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetWithProvider failed: %v", err)
	}
	if models != nil {
		t.Errorf("expected no query for empty ids, got %+v", models)
	}
}
