// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/metrics"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

const rebuildRollupSQL = `INSERT INTO event_rollup_minute
	(upload_id, bucket, user_email, client_ip, dest_host, action, threat_category, total)
SELECT
	upload_id,
	date_trunc('minute', event_time) AS bucket,
	user_email,
	client_ip,
	dest_host,
	action,
	threat_category,
	count(*) AS total
FROM events
WHERE upload_id = ? AND event_time IS NOT NULL
GROUP BY upload_id, date_trunc('minute', event_time),
	user_email, client_ip, dest_host, action, threat_category`

// RebuildMinuteRollup replaces the minute rollup for an upload from scratch.
// The delete and insert run in one transaction, so readers never observe a
// partially built rollup. Events without a parse-able timestamp are excluded.
// Returns the number of rollup rows produced.
func (db *DB) RebuildMinuteRollup(ctx context.Context, uploadID string) (int64, error) {
	start := time.Now()
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rollup rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM event_rollup_minute WHERE upload_id = ?`, uploadID); err != nil {
		return 0, fmt.Errorf("clear rollup for upload %s: %w", uploadID, err)
	}

	res, err := tx.ExecContext(ctx, rebuildRollupSQL, uploadID)
	if err != nil {
		return 0, fmt.Errorf("rebuild rollup for upload %s: %w", uploadID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rollup rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rollup rebuild: %w", err)
	}

	metrics.RollupRowsInserted.Add(float64(inserted))
	metrics.RollupRebuildDuration.Observe(time.Since(start).Seconds())
	return inserted, nil
}

// Rollup lookup knobs. The lookup is meant for surfacing the strongest
// concentrations, so its caps are tighter than the raw-event limits.
const (
	DefaultRollupLimit = 20
	MaxRollupLimit     = 100
	maxRollupMinTotal  = 10_000
)

// rollupGroupColumns lists the entity dimensions a rollup lookup may group
// by. Only values from this map ever reach the SQL text.
var rollupGroupColumns = map[string]string{
	"client_ip":       "client_ip",
	"user_email":      "user_email",
	"dest_host":       "dest_host",
	"threat_category": "threat_category",
}

// ValidRollupGroupBy reports whether name is a grouping dimension QueryRollup
// accepts.
func ValidRollupGroupBy(name string) bool {
	_, ok := rollupGroupColumns[name]
	return ok
}

// RollupFilter narrows a rollup lookup. UploadID is required. GroupBy picks
// the entity dimension (client_ip when empty). MinTotal is a floor on the
// per-bucket summed count, clamped to [1, 10000].
type RollupFilter struct {
	UploadID       string
	GroupBy        string
	UserEmail      string
	ClientIP       string
	DestHost       string
	ThreatCategory string
	Action         string
	Since          *time.Time
	Until          *time.Time
	MinTotal       int64
	Limit          int
}

// QueryRollup surfaces minute-bucket concentrations for one entity
// dimension. Rollup rows are summed per (bucket, entity) and buckets under
// the MinTotal floor are dropped in a HAVING clause, so activity that the
// finer rollup tuples split across hosts or actions still counts toward the
// floor. Results are ordered strongest first.
func (db *DB) QueryRollup(ctx context.Context, filter RollupFilter) ([]*models.RollupBucket, error) {
	if filter.UploadID == "" {
		return nil, fmt.Errorf("rollup query requires an upload id")
	}
	groupBy := filter.GroupBy
	if groupBy == "" {
		groupBy = "client_ip"
	}
	groupCol, ok := rollupGroupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unknown rollup group_by %q", groupBy)
	}

	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	where := []string{"upload_id = ?"}
	args := []any{filter.UploadID}

	addEq := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	addEq("user_email", filter.UserEmail)
	addEq("client_ip", filter.ClientIP)
	addEq("dest_host", filter.DestHost)
	addEq("threat_category", filter.ThreatCategory)
	if filter.Action != "" {
		where = append(where, "action ILIKE ?")
		args = append(args, filter.Action)
	}
	if filter.Since != nil {
		where = append(where, "bucket >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		where = append(where, "bucket <= ?")
		args = append(args, *filter.Until)
	}

	minTotal := filter.MinTotal
	if minTotal < 1 {
		minTotal = 1
	}
	if minTotal > maxRollupMinTotal {
		minTotal = maxRollupMinTotal
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRollupLimit
	}
	if limit > MaxRollupLimit {
		limit = MaxRollupLimit
	}

	query := `SELECT bucket, ` + groupCol + ` AS entity, sum(total) AS hits
FROM event_rollup_minute WHERE ` + strings.Join(where, " AND ") + `
GROUP BY 1, 2
HAVING sum(total) >= ?
ORDER BY hits DESC
LIMIT ?`
	args = append(args, minTotal, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rollup: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.RollupBucket
	for rows.Next() {
		var (
			b      models.RollupBucket
			bucket sql.NullTime
		)
		if err := rows.Scan(&bucket, &b.Entity, &b.Hits); err != nil {
			return nil, fmt.Errorf("scan rollup bucket: %w", err)
		}
		if bucket.Valid {
			b.Bucket = bucket.Time.UTC()
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
