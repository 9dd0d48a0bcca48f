// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureSchemaExecutesDDL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS provider_accounts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEnsureSchemaCoversAllEntities(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(
		func(expectedSQL, actualSQL string) error {
			for _, table := range []string{
				"provider_accounts", "models", "monitoring_configs", "uptime_checks",
				"benchmark_runs", "benchmark_results", "alert_rules", "alerts",
			} {
				if !strings.Contains(actualSQL, "CREATE TABLE IF NOT EXISTS "+table) {
					t.Errorf("schema missing table %s", table)
				}
			}
			for _, clause := range []string{
				"ON DELETE CASCADE",
				"ON DELETE SET NULL",
				"ADD COLUMN IF NOT EXISTS ttft_ms",
				"ADD COLUMN IF NOT EXISTS tps",
				"ADD COLUMN IF NOT EXISTS output_tokens",
			} {
				if !strings.Contains(actualSQL, clause) {
					t.Errorf("schema missing clause %q", clause)
				}
			}
			return nil
		})))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}

func TestEnsureSchemaPropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS provider_accounts").
		WillReturnError(errors.New("exec failed"))

	if err := EnsureSchema(db); err == nil {
		t.Fatal("expected error from failed DDL")
	}
}
