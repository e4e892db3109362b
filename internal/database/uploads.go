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

// ErrUploadNotFound reports a lookup for an upload id with no record.
var ErrUploadNotFound = errors.New("upload not found")

// CreateUpload registers a staged log file and returns its record.
func (db *DB) CreateUpload(ctx context.Context, filename, storedPath string, sizeBytes int64) (*models.Upload, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	up := &models.Upload{
		ID:         uuid.NewString(),
		Filename:   filename,
		StoredPath: storedPath,
		SizeBytes:  sizeBytes,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO uploads
		(id, filename, stored_path, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		up.ID, up.Filename, up.StoredPath, up.SizeBytes, up.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	return up, nil
}

// GetUpload loads one upload record by id.
func (db *DB) GetUpload(ctx context.Context, uploadID string) (*models.Upload, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	var up models.Upload
	err := db.conn.QueryRowContext(ctx, `SELECT
		id, filename, stored_path, size_bytes, created_at
		FROM uploads WHERE id = ?`, uploadID).Scan(
		&up.ID, &up.Filename, &up.StoredPath, &up.SizeBytes, &up.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load upload %s: %w", uploadID, err)
	}
	up.CreatedAt = up.CreatedAt.UTC()
	return &up, nil
}

// ListUploads returns stored uploads newest first.
func (db *DB) ListUploads(ctx context.Context, limit int) ([]*models.Upload, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > MaxEventLimit {
		limit = DefaultEventLimit
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT
		id, filename, stored_path, size_bytes, created_at
		FROM uploads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Upload
	for rows.Next() {
		var up models.Upload
		err := rows.Scan(&up.ID, &up.Filename, &up.StoredPath, &up.SizeBytes, &up.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		up.CreatedAt = up.CreatedAt.UTC()
		out = append(out, &up)
	}
	return out, rows.Err()
}
