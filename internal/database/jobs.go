// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

// ErrJobNotFound reports a lookup for an ingest job id with no record.
var ErrJobNotFound = errors.New("ingest job not found")

// CreateIngestJob inserts a new queued job for an upload and returns it.
func (db *DB) CreateIngestJob(ctx context.Context, uploadID string) (*models.IngestJob, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	job := &models.IngestJob{
		ID:        uuid.NewString(),
		UploadID:  uploadID,
		Status:    models.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO ingest_jobs
		(id, upload_id, status, inserted_events, bad_lines, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)`,
		job.ID, job.UploadID, string(job.Status), now, now)
	if err != nil {
		return nil, fmt.Errorf("create ingest job: %w", err)
	}
	return job, nil
}

// UpdateIngestJob overwrites a job's progress counters and status. errMsg is
// only set on terminal failure and is preserved as-is for operators.
func (db *DB) UpdateIngestJob(ctx context.Context, jobID string, status models.JobStatus, inserted, badLines int64, errMsg *string) error {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `UPDATE ingest_jobs SET
		status = ?, inserted_events = ?, bad_lines = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(status), inserted, badLines, errMsg, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("update ingest job %s: %w", jobID, err)
	}
	return nil
}

// GetIngestJob loads one job by id.
func (db *DB) GetIngestJob(ctx context.Context, jobID string) (*models.IngestJob, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	var (
		job    models.IngestJob
		status string
	)
	err := db.conn.QueryRowContext(ctx, `SELECT
		id, upload_id, status, inserted_events, bad_lines, error, created_at, updated_at
		FROM ingest_jobs WHERE id = ?`, jobID).Scan(
		&job.ID, &job.UploadID, &status, &job.InsertedEvents, &job.BadLines,
		&job.Error, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ingest job %s: %w", jobID, err)
	}
	job.Status = models.JobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}
