// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package database

import (
	"context"
	"fmt"
)

// schemaStatements are executed in order on startup. All statements are
// idempotent so repeated starts against the same file are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		stored_path TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS ingest_jobs (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		status TEXT NOT NULL,
		inserted_events BIGINT NOT NULL DEFAULT 0,
		bad_lines BIGINT NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		upload_id TEXT NOT NULL,
		event_time TIMESTAMP,
		event_id TEXT,
		vendor TEXT,
		action TEXT,
		reason TEXT,
		severity TEXT,
		status BIGINT,
		user_email TEXT,
		department TEXT,
		location TEXT,
		client_ip TEXT,
		server_ip TEXT,
		dest_host TEXT,
		url TEXT,
		request_method TEXT,
		url_category TEXT,
		threat_category TEXT,
		threat_name TEXT,
		risk_score BIGINT,
		request_size BIGINT,
		response_size BIGINT,
		transaction_size BIGINT,
		raw JSON
	)`,

	`CREATE TABLE IF NOT EXISTS event_rollup_minute (
		upload_id TEXT NOT NULL,
		bucket TIMESTAMP NOT NULL,
		user_email TEXT,
		client_ip TEXT,
		dest_host TEXT,
		action TEXT,
		threat_category TEXT,
		total BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS upload_features (
		upload_id TEXT PRIMARY KEY,
		stats JSON NOT NULL,
		computed_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		pattern_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence DOUBLE NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		evidence JSON NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_upload_time ON events (upload_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_rollup_upload_bucket ON event_rollup_minute (upload_id, bucket)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_upload ON findings (upload_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_upload ON ingest_jobs (upload_id)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
