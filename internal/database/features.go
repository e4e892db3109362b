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

	"github.com/goccy/go-json"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/metrics"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

// Sentinel labels used in top-N lists when the grouped column is NULL.
const (
	nullEntityLabel         = "<null>"
	nullThreatCategoryLabel = "None"
)

// ComputeUploadFeatures derives the summary-statistics document for an
// upload from its raw events and upserts it into upload_features. topN
// bounds each frequency list. Safe to call repeatedly; the stored document
// and its computed_at stamp are replaced each time.
func (db *DB) ComputeUploadFeatures(ctx context.Context, uploadID string, topN int) (*models.UploadFeatures, error) {
	start := time.Now()
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	if topN <= 0 {
		topN = 20
	}

	feats := &models.UploadFeatures{UploadID: uploadID}

	var minT, maxT sql.NullTime
	err := db.conn.QueryRowContext(ctx, `SELECT
		count(*),
		min(event_time),
		max(event_time),
		count(*) FILTER (WHERE action ILIKE 'Blocked'),
		count(*) FILTER (WHERE action ILIKE 'Allowed')
	FROM events WHERE upload_id = ?`, uploadID).Scan(
		&feats.TotalEvents, &minT, &maxT, &feats.Blocked, &feats.Allowed)
	if err != nil {
		return nil, fmt.Errorf("feature counts for upload %s: %w", uploadID, err)
	}
	if minT.Valid {
		t := minT.Time.UTC()
		feats.TimeRange.Start = &t
	}
	if maxT.Valid {
		t := maxT.Time.UTC()
		feats.TimeRange.End = &t
	}

	type topSpec struct {
		column   string
		sentinel string
		dst      *[]models.EntityCount
	}
	tops := []topSpec{
		{"user_email", nullEntityLabel, &feats.TopUsers},
		{"client_ip", nullEntityLabel, &feats.TopClientIPs},
		{"dest_host", nullEntityLabel, &feats.TopDestHosts},
		{"threat_category", nullThreatCategoryLabel, &feats.TopThreatCategories},
	}
	for _, spec := range tops {
		counts, err := db.topEntities(ctx, uploadID, spec.column, spec.sentinel, topN)
		if err != nil {
			return nil, err
		}
		*spec.dst = counts
	}

	feats.ComputedAt = time.Now().UTC()

	doc, err := json.Marshal(feats)
	if err != nil {
		return nil, fmt.Errorf("marshal features for upload %s: %w", uploadID, err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO upload_features (upload_id, stats, computed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (upload_id) DO UPDATE SET
			stats = excluded.stats,
			computed_at = excluded.computed_at`,
		uploadID, string(doc), feats.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("store features for upload %s: %w", uploadID, err)
	}

	metrics.FeatureComputeDuration.Observe(time.Since(start).Seconds())
	return feats, nil
}

func (db *DB) topEntities(ctx context.Context, uploadID, column, sentinel string, topN int) ([]models.EntityCount, error) {
	// column comes from a fixed internal list, never caller input.
	query := fmt.Sprintf(`SELECT COALESCE(%s, ?) AS value, count(*) AS n
		FROM events WHERE upload_id = ?
		GROUP BY value ORDER BY n DESC, value LIMIT ?`, column)

	rows, err := db.conn.QueryContext(ctx, query, sentinel, uploadID, topN)
	if err != nil {
		return nil, fmt.Errorf("top %s for upload %s: %w", column, uploadID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.EntityCount
	for rows.Next() {
		var ec models.EntityCount
		if err := rows.Scan(&ec.Value, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan top %s: %w", column, err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// ErrFeaturesNotFound reports that an upload has no stored feature document.
var ErrFeaturesNotFound = errors.New("upload features not found")

// GetUploadFeatures loads the stored feature document for an upload.
func (db *DB) GetUploadFeatures(ctx context.Context, uploadID string) (*models.UploadFeatures, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	var doc string
	err := db.conn.QueryRowContext(ctx,
		`SELECT stats FROM upload_features WHERE upload_id = ?`, uploadID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeaturesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load features for upload %s: %w", uploadID, err)
	}

	var feats models.UploadFeatures
	if err := json.Unmarshal([]byte(doc), &feats); err != nil {
		return nil, fmt.Errorf("decode features for upload %s: %w", uploadID, err)
	}
	return &feats, nil
}
