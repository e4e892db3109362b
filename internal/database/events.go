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

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

const (
	// DefaultEventLimit is applied when a query requests no limit.
	DefaultEventLimit = 200
	// MaxEventLimit caps any requested event query limit.
	MaxEventLimit = 500
)

const insertEventSQL = `INSERT INTO events (
	upload_id, event_time, event_id, vendor, action, reason, severity, status,
	user_email, department, location, client_ip, server_ip, dest_host, url,
	request_method, url_category, threat_category, threat_name, risk_score,
	request_size, response_size, transaction_size, raw
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertEventBatch writes a batch of normalized events inside a single
// transaction. Either the whole batch lands or none of it does.
func (db *DB) InsertEventBatch(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		var raw any
		if len(ev.Raw) > 0 {
			raw = string(ev.Raw)
		}
		_, err = stmt.ExecContext(ctx,
			ev.UploadID, ev.EventTime, ev.EventID, ev.Vendor, ev.Action,
			ev.Reason, ev.Severity, ev.Status, ev.UserEmail, ev.Department,
			ev.Location, ev.ClientIP, ev.ServerIP, ev.DestHost, ev.URL,
			ev.RequestMethod, ev.URLCategory, ev.ThreatCategory, ev.ThreatName,
			ev.RiskScore, ev.RequestSize, ev.ResponseSize, ev.TransactionSize,
			raw,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event batch: %w", err)
	}
	return nil
}

// EventFilter narrows an event query. UploadID is required; the remaining
// fields are ANDed equality filters when set. Bucket matches events whose
// minute truncation equals the given instant, which is how finding
// verification queries drill back to raw rows.
type EventFilter struct {
	UploadID       string
	UserEmail      string
	ClientIP       string
	DestHost       string
	ThreatCategory string
	Action         string
	Bucket         *time.Time
	Since          *time.Time
	Until          *time.Time
	Limit          int
}

const selectEventSQL = `SELECT
	upload_id, event_time, event_id, vendor, action, reason, severity, status,
	user_email, department, location, client_ip, server_ip, dest_host, url,
	request_method, url_category, threat_category, threat_name, risk_score,
	request_size, response_size, transaction_size
FROM events`

// QueryEvents returns raw events matching the filter, ordered by event time.
// The limit is clamped to [1, MaxEventLimit] with DefaultEventLimit applied
// when none is given.
func (db *DB) QueryEvents(ctx context.Context, filter EventFilter) ([]*models.Event, error) {
	if filter.UploadID == "" {
		return nil, fmt.Errorf("event query requires an upload id")
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
	if filter.Bucket != nil {
		where = append(where, "date_trunc('minute', event_time) = ?")
		args = append(args, *filter.Bucket)
	}
	if filter.Since != nil {
		where = append(where, "event_time >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		where = append(where, "event_time <= ?")
		args = append(args, *filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	query := selectEventSQL + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY event_time LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountEvents returns the number of stored events for an upload.
func (db *DB) CountEvents(ctx context.Context, uploadID string) (int64, error) {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()

	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM events WHERE upload_id = ?`, uploadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows) (*models.Event, error) {
	var (
		ev        models.Event
		eventTime sql.NullTime
	)
	// Nullable columns scan through double pointers; database/sql leaves
	// them nil on NULL and allocates otherwise.
	err := rows.Scan(
		&ev.UploadID, &eventTime,
		&ev.EventID, &ev.Vendor, &ev.Action, &ev.Reason, &ev.Severity,
		&ev.Status,
		&ev.UserEmail, &ev.Department, &ev.Location, &ev.ClientIP,
		&ev.ServerIP, &ev.DestHost, &ev.URL, &ev.RequestMethod,
		&ev.URLCategory, &ev.ThreatCategory, &ev.ThreatName,
		&ev.RiskScore, &ev.RequestSize, &ev.ResponseSize, &ev.TransactionSize,
	)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if eventTime.Valid {
		t := eventTime.Time.UTC()
		ev.EventTime = &t
	}
	return &ev, nil
}
