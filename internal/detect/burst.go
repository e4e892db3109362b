// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
)

// BurstConfig tunes the single-IP burst detector.
type BurstConfig struct {
	// MinHitsPerMinute is the event count one client IP must reach inside a
	// single minute bucket.
	MinHitsPerMinute int64
	// MaxFindings caps findings per run, strongest first.
	MaxFindings int
}

// DefaultBurstConfig returns the standard burst thresholds.
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		MinHitsPerMinute: 200,
		MaxFindings:      20,
	}
}

// BurstDetector flags minutes where one client IP produced an outsized event
// count, which usually indicates automation (scan or beacon) or a runaway
// process.
type BurstDetector struct {
	reader RollupReader
	cfg    BurstConfig
}

// NewBurstDetector builds the detector over a rollup reader.
func NewBurstDetector(reader RollupReader, cfg BurstConfig) *BurstDetector {
	return &BurstDetector{reader: reader, cfg: cfg}
}

func (d *BurstDetector) Pattern() Pattern { return PatternBurstFromSingleIP }

func (d *BurstDetector) Evaluate(ctx context.Context, uploadID string) ([]Candidate, error) {
	groups, err := d.reader.BurstGroups(ctx, uploadID, d.cfg.MinHitsPerMinute, d.cfg.MaxFindings)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, g := range groups {
		ev := &BurstEvidence{
			Bucket:       g.Bucket,
			ClientIP:     g.ClientIP,
			HitsInMinute: g.Hits,
			HowToVerify: VerificationQuery{
				SQL: "select * from events where upload_id=? and client_ip=? and date_trunc('minute', event_time)=? limit 200",
				Params: map[string]any{
					"upload_id": uploadID,
					"client_ip": g.ClientIP,
					"bucket":    g.Bucket,
				},
			},
		}
		out = append(out, Candidate{
			UploadID:   uploadID,
			Pattern:    d.Pattern(),
			Severity:   SeverityHigh,
			Confidence: Score(SeverityHigh, ev),
			Title:      fmt.Sprintf("Burst from %s", g.ClientIP),
			Summary: fmt.Sprintf(
				"%s generated %d events in one minute (%s). This often indicates automation (scan/beacon) or a runaway process.",
				g.ClientIP, g.Hits, g.Bucket.Format(timeDisplayLayout)),
			Evidence: ev,
		})
	}
	return out, nil
}
