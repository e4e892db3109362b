// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package models

import "time"

// JobStatus is the lifecycle state of an ingest job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// IngestJob tracks one ingestion run for an upload. Progress counts are
// refreshed after every batch flush so that pollers see incremental state,
// and the terminal state carries the causal error when the run failed.
type IngestJob struct {
	ID             string    `json:"id"`
	UploadID       string    `json:"upload_id"`
	Status         JobStatus `json:"status"`
	InsertedEvents int64     `json:"inserted_events"`
	BadLines       int64     `json:"bad_lines"`
	Error          *string   `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Upload is the registration record for one staged log export. The staged
// file path points at a server-local JSONL file; upload streaming and remote
// storage belong to an external layer.
type Upload struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	StoredPath string    `json:"stored_path"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}
