// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BurstGroup is one (minute, client IP) bucket past the burst threshold.
type BurstGroup struct {
	Bucket   time.Time
	ClientIP string
	Hits     int64
}

// BlockedCategoryGroup is one (user, IP, category) tuple past the repeated
// block threshold. UserEmail and ClientIP keep database NULLs as nil.
type BlockedCategoryGroup struct {
	UserEmail      *string
	ClientIP       *string
	ThreatCategory string
	BlockedHits    int64
}

// BlockedHostGroup is one destination host past the concentration threshold.
type BlockedHostGroup struct {
	DestHost    string
	BlockedHits int64
}

// MultiCategoryGroup is one user/IP pair blocked across several threat
// categories. Null entities surface as the "<null>" sentinel.
type MultiCategoryGroup struct {
	UserEmail    string
	ClientIP     string
	DistinctCats int64
	BlockedHits  int64
}

// BeaconingGroup is one user/IP/host tuple with C2-category blocks spread
// over distinct minutes.
type BeaconingGroup struct {
	UserEmail     string
	ClientIP      string
	DestHost      string
	ActiveMinutes int64
	Hits          int64
}

// PhishChainGroup is one user/IP pair with phishing blocks followed by
// payload-stage blocks inside the chain window.
type PhishChainGroup struct {
	UserEmail    string
	ClientIP     string
	FirstPhish   time.Time
	FirstPayload time.Time
	PhishHits    int64
	PayloadHits  int64
}

// RollupReader is the query surface detectors consume. One implementation
// runs against DuckDB; tests substitute canned groups.
type RollupReader interface {
	BurstGroups(ctx context.Context, uploadID string, minHits int64, limit int) ([]BurstGroup, error)
	BlockedCategoryGroups(ctx context.Context, uploadID string, minHits int64, limit int) ([]BlockedCategoryGroup, error)
	BlockedHostGroups(ctx context.Context, uploadID string, minHits int64, limit int) ([]BlockedHostGroup, error)
	MultiCategoryGroups(ctx context.Context, uploadID string, minCategories, minBlocked int64, limit int) ([]MultiCategoryGroup, error)
	BeaconingGroups(ctx context.Context, uploadID string, minMinutes, minHits int64, limit int) ([]BeaconingGroup, error)
	PhishChainGroups(ctx context.Context, uploadID string, windowMinutes int, minPhish, minPayload int64, limit int) ([]PhishChainGroup, error)
}

// FindingStore persists and lists findings. Inserts are append-only; re-runs
// never overwrite earlier findings.
type FindingStore interface {
	InsertFinding(ctx context.Context, f *Finding) error
	ListFindings(ctx context.Context, uploadID string, limit int) ([]*Finding, error)
}

// DuckDBStore implements RollupReader and FindingStore over the shared
// database handle.
type DuckDBStore struct {
	conn *sql.DB
}

// NewDuckDBStore wraps an open connection. The handle is shared with the
// rest of the process; the store adds no state of its own.
func NewDuckDBStore(conn *sql.DB) *DuckDBStore {
	return &DuckDBStore{conn: conn}
}

func (s *DuckDBStore) BurstGroups(ctx context.Context, uploadID string, minHits int64, limit int) ([]BurstGroup, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bucket, client_ip, sum(total) AS hits
		FROM event_rollup_minute
		WHERE upload_id = ? AND client_ip IS NOT NULL
		GROUP BY bucket, client_ip
		HAVING sum(total) >= ?
		ORDER BY hits DESC
		LIMIT ?`, uploadID, minHits, limit)
	if err != nil {
		return nil, fmt.Errorf("burst groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BurstGroup
	for rows.Next() {
		var g BurstGroup
		if err := rows.Scan(&g.Bucket, &g.ClientIP, &g.Hits); err != nil {
			return nil, fmt.Errorf("scan burst group: %w", err)
		}
		g.Bucket = g.Bucket.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) BlockedCategoryGroups(ctx context.Context, uploadID string, minHits int64, limit int) ([]BlockedCategoryGroup, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_email, client_ip, threat_category, sum(total) AS blocked_hits
		FROM event_rollup_minute
		WHERE upload_id = ?
		  AND action ILIKE 'Blocked'
		  AND threat_category IS NOT NULL
		GROUP BY user_email, client_ip, threat_category
		HAVING sum(total) >= ?
		ORDER BY blocked_hits DESC
		LIMIT ?`, uploadID, minHits, limit)
	if err != nil {
		return nil, fmt.Errorf("blocked category groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BlockedCategoryGroup
	for rows.Next() {
		var g BlockedCategoryGroup
		if err := rows.Scan(&g.UserEmail, &g.ClientIP, &g.ThreatCategory, &g.BlockedHits); err != nil {
			return nil, fmt.Errorf("scan blocked category group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) BlockedHostGroups(ctx context.Context, uploadID string, minHits int64, limit int) ([]BlockedHostGroup, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT dest_host, sum(total) AS hits
		FROM event_rollup_minute
		WHERE upload_id = ?
		  AND action ILIKE 'Blocked'
		  AND dest_host IS NOT NULL
		GROUP BY dest_host
		HAVING sum(total) >= ?
		ORDER BY hits DESC
		LIMIT ?`, uploadID, minHits, limit)
	if err != nil {
		return nil, fmt.Errorf("blocked host groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BlockedHostGroup
	for rows.Next() {
		var g BlockedHostGroup
		if err := rows.Scan(&g.DestHost, &g.BlockedHits); err != nil {
			return nil, fmt.Errorf("scan blocked host group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) MultiCategoryGroups(ctx context.Context, uploadID string, minCategories, minBlocked int64, limit int) ([]MultiCategoryGroup, error) {
	rows, err := s.conn.QueryContext(ctx, `
		WITH x AS (
			SELECT
				COALESCE(user_email, '<null>') AS user_email,
				COALESCE(client_ip, '<null>') AS client_ip,
				count(DISTINCT threat_category) AS distinct_cats,
				sum(total) AS blocked_hits
			FROM event_rollup_minute
			WHERE upload_id = ?
			  AND action ILIKE 'Blocked'
			  AND threat_category IS NOT NULL
			GROUP BY 1, 2
		)
		SELECT user_email, client_ip, distinct_cats, blocked_hits
		FROM x
		WHERE distinct_cats >= ? AND blocked_hits >= ?
		ORDER BY blocked_hits DESC
		LIMIT ?`, uploadID, minCategories, minBlocked, limit)
	if err != nil {
		return nil, fmt.Errorf("multi-category groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []MultiCategoryGroup
	for rows.Next() {
		var g MultiCategoryGroup
		if err := rows.Scan(&g.UserEmail, &g.ClientIP, &g.DistinctCats, &g.BlockedHits); err != nil {
			return nil, fmt.Errorf("scan multi-category group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) BeaconingGroups(ctx context.Context, uploadID string, minMinutes, minHits int64, limit int) ([]BeaconingGroup, error) {
	rows, err := s.conn.QueryContext(ctx, `
		WITH x AS (
			SELECT
				COALESCE(user_email, '<null>') AS user_email,
				COALESCE(client_ip, '<null>') AS client_ip,
				dest_host,
				count(DISTINCT bucket) AS active_minutes,
				sum(total) AS hits
			FROM event_rollup_minute
			WHERE upload_id = ?
			  AND action ILIKE 'Blocked'
			  AND dest_host IS NOT NULL
			  AND (threat_category ILIKE 'Botnet%'
				OR threat_category ILIKE 'Command%'
				OR threat_category ILIKE 'C2%')
			GROUP BY 1, 2, 3
		)
		SELECT user_email, client_ip, dest_host, active_minutes, hits
		FROM x
		WHERE active_minutes >= ? AND hits >= ?
		ORDER BY hits DESC
		LIMIT ?`, uploadID, minMinutes, minHits, limit)
	if err != nil {
		return nil, fmt.Errorf("beaconing groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BeaconingGroup
	for rows.Next() {
		var g BeaconingGroup
		if err := rows.Scan(&g.UserEmail, &g.ClientIP, &g.DestHost, &g.ActiveMinutes, &g.Hits); err != nil {
			return nil, fmt.Errorf("scan beaconing group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) PhishChainGroups(ctx context.Context, uploadID string, windowMinutes int, minPhish, minPayload int64, limit int) ([]PhishChainGroup, error) {
	// The lower bound on first_payload keeps chains causal: payload activity
	// that precedes the first phish hit is not a phish-led chain.
	rows, err := s.conn.QueryContext(ctx, `
		WITH phish AS (
			SELECT
				COALESCE(user_email, '<null>') AS user_email,
				COALESCE(client_ip, '<null>') AS client_ip,
				min(bucket) AS first_phish,
				sum(total) AS phish_hits
			FROM event_rollup_minute
			WHERE upload_id = ?
			  AND action ILIKE 'Blocked'
			  AND threat_category ILIKE 'Phishing%'
			GROUP BY 1, 2
		),
		payload AS (
			SELECT
				COALESCE(user_email, '<null>') AS user_email,
				COALESCE(client_ip, '<null>') AS client_ip,
				min(bucket) AS first_payload,
				sum(total) AS payload_hits
			FROM event_rollup_minute
			WHERE upload_id = ?
			  AND action ILIKE 'Blocked'
			  AND (threat_category ILIKE 'Malware%'
				OR threat_category ILIKE 'Ransomware%'
				OR threat_category ILIKE 'Botnet%'
				OR threat_category ILIKE 'Cryptomining%'
				OR threat_category ILIKE 'Data Transfer%'
				OR threat_category ILIKE 'Data Leakage%')
			GROUP BY 1, 2
		)
		SELECT p.user_email, p.client_ip, p.first_phish, y.first_payload, p.phish_hits, y.payload_hits
		FROM phish p
		JOIN payload y USING (user_email, client_ip)
		WHERE p.phish_hits >= ? AND y.payload_hits >= ?
		  AND y.first_payload >= p.first_phish
		  AND y.first_payload <= p.first_phish + INTERVAL 1 MINUTE * ?
		ORDER BY y.payload_hits DESC
		LIMIT ?`, uploadID, uploadID, minPhish, minPayload, windowMinutes, limit)
	if err != nil {
		return nil, fmt.Errorf("phish chain groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PhishChainGroup
	for rows.Next() {
		var g PhishChainGroup
		err := rows.Scan(&g.UserEmail, &g.ClientIP, &g.FirstPhish, &g.FirstPayload,
			&g.PhishHits, &g.PayloadHits)
		if err != nil {
			return nil, fmt.Errorf("scan phish chain group: %w", err)
		}
		g.FirstPhish = g.FirstPhish.UTC()
		g.FirstPayload = g.FirstPayload.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

// InsertFinding appends one finding. The caller provides everything except
// the id and creation time.
func (s *DuckDBStore) InsertFinding(ctx context.Context, f *Finding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `INSERT INTO findings
		(id, upload_id, pattern_name, severity, confidence, title, summary, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UploadID, f.PatternName, f.Severity, f.Confidence,
		f.Title, f.Summary, string(f.Evidence), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

// ListFindings returns an upload's findings newest first.
func (s *DuckDBStore) ListFindings(ctx context.Context, uploadID string, limit int) ([]*Finding, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, upload_id, pattern_name, severity, confidence, title, summary, evidence, created_at
		FROM findings
		WHERE upload_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, uploadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Finding
	for rows.Next() {
		var (
			f        Finding
			evidence string
		)
		err := rows.Scan(&f.ID, &f.UploadID, &f.PatternName, &f.Severity,
			&f.Confidence, &f.Title, &f.Summary, &evidence, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Evidence = []byte(evidence)
		f.CreatedAt = f.CreatedAt.UTC()
		out = append(out, &f)
	}
	return out, rows.Err()
}
