// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package storage opens the Postgres pool and installs the schema. Every
// domain package gets the same *sql.DB; schema creation is idempotent so
// the server can start against a fresh or an existing database.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// connectRetries covers container orchestration where the database becomes
// reachable a few seconds after the server process starts.
const connectRetries = 5

// Open connects to Postgres and verifies the connection with a ping,
// retrying with linear backoff before giving up.
func Open(databaseURL string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= connectRetries; attempt++ {
		db, err = sql.Open("postgres", databaseURL)
		if err == nil {
			err = db.Ping()
			if err == nil {
				return db, nil
			}
		}
		if attempt < connectRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Printf("[Storage] database connection failed (attempt %d/%d): %v, retrying in %v",
				attempt, connectRetries, err, backoff)
			time.Sleep(backoff)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectRetries, err)
}

// EnsureSchema creates every table and index the server needs. All
// statements are IF NOT EXISTS so repeated startups are harmless; the
// trailing ALTER TABLEs bring databases created before the streaming-metric
// columns up to date.
func EnsureSchema(db *sql.DB) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS provider_accounts (
		id UUID PRIMARY KEY,
		provider_type VARCHAR(50) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		credentials_encrypted TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS models (
		id UUID PRIMARY KEY,
		provider_account_id UUID NOT NULL REFERENCES provider_accounts(id) ON DELETE CASCADE,
		model_id VARCHAR(255) NOT NULL,
		custom_name VARCHAR(255),
		source VARCHAR(20) NOT NULL DEFAULT 'discovered',
		enabled_for_monitoring BOOLEAN NOT NULL DEFAULT FALSE,
		enabled_for_benchmark BOOLEAN NOT NULL DEFAULT TRUE,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(provider_account_id, model_id)
	);

	CREATE TABLE IF NOT EXISTS monitoring_configs (
		id UUID PRIMARY KEY,
		interval_minutes INTEGER NOT NULL DEFAULT 15,
		prompt_pack VARCHAR(100) NOT NULL DEFAULT 'health_check',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_run_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS uptime_checks (
		id UUID PRIMARY KEY,
		model_id UUID NOT NULL REFERENCES models(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL,
		latency_ms DOUBLE PRECISION,
		ttft_ms DOUBLE PRECISION,
		tps DOUBLE PRECISION,
		output_tokens INTEGER,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS benchmark_runs (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		model_ids TEXT[] NOT NULL,
		prompt_pack VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		triggered_by VARCHAR(20) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS benchmark_results (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES benchmark_runs(id) ON DELETE CASCADE,
		model_id UUID NOT NULL REFERENCES models(id) ON DELETE CASCADE,
		ttft_ms DOUBLE PRECISION NOT NULL,
		tps DOUBLE PRECISION NOT NULL,
		tps_excluding_ttft DOUBLE PRECISION NOT NULL,
		total_latency_ms DOUBLE PRECISION NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		estimated_cost DOUBLE PRECISION,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS alert_rules (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		rule_type VARCHAR(50) NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		target_model_id UUID REFERENCES models(id) ON DELETE CASCADE,
		target_model_name VARCHAR(255),
		threshold_config JSONB,
		notify_in_app BOOLEAN NOT NULL DEFAULT TRUE,
		notify_email BOOLEAN NOT NULL DEFAULT FALSE,
		notify_webhook BOOLEAN NOT NULL DEFAULT FALSE,
		webhook_url VARCHAR(500),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id UUID PRIMARY KEY,
		rule_id UUID NOT NULL REFERENCES alert_rules(id) ON DELETE CASCADE,
		model_id UUID REFERENCES models(id) ON DELETE SET NULL,
		message TEXT NOT NULL,
		acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_models_provider ON models(provider_account_id);
	CREATE INDEX IF NOT EXISTS idx_uptime_checks_model ON uptime_checks(model_id);
	CREATE INDEX IF NOT EXISTS idx_uptime_checks_created ON uptime_checks(created_at);
	CREATE INDEX IF NOT EXISTS idx_benchmark_runs_status ON benchmark_runs(status);
	CREATE INDEX IF NOT EXISTS idx_benchmark_runs_started ON benchmark_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_benchmark_results_run ON benchmark_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_benchmark_results_model ON benchmark_results(model_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_rule ON alerts(rule_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_acknowledged ON alerts(acknowledged);
	CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);

	ALTER TABLE uptime_checks ADD COLUMN IF NOT EXISTS ttft_ms DOUBLE PRECISION;
	ALTER TABLE uptime_checks ADD COLUMN IF NOT EXISTS tps DOUBLE PRECISION;
	ALTER TABLE uptime_checks ADD COLUMN IF NOT EXISTS output_tokens INTEGER;
	`

	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
