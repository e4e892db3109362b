// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
)

// BlockedHostConfig tunes the blocked-host concentration detector.
type BlockedHostConfig struct {
	// MinBlockedHits is the blocked count one destination host must
	// accumulate across the upload.
	MinBlockedHits int64
	MaxFindings    int
}

// DefaultBlockedHostConfig returns the standard host-concentration
// thresholds.
func DefaultBlockedHostConfig() BlockedHostConfig {
	return BlockedHostConfig{
		MinBlockedHits: 15,
		MaxFindings:    20,
	}
}

// BlockedHostDetector flags destination hosts that concentrate blocked
// traffic, a pivot point into users, IPs, and timeline.
type BlockedHostDetector struct {
	reader RollupReader
	cfg    BlockedHostConfig
}

// NewBlockedHostDetector builds the detector over a rollup reader.
func NewBlockedHostDetector(reader RollupReader, cfg BlockedHostConfig) *BlockedHostDetector {
	return &BlockedHostDetector{reader: reader, cfg: cfg}
}

func (d *BlockedHostDetector) Pattern() Pattern { return PatternTopBlockedDestHost }

func (d *BlockedHostDetector) Evaluate(ctx context.Context, uploadID string) ([]Candidate, error) {
	groups, err := d.reader.BlockedHostGroups(ctx, uploadID, d.cfg.MinBlockedHits, d.cfg.MaxFindings)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, g := range groups {
		ev := &BlockedHostEvidence{
			DestHost:    g.DestHost,
			BlockedHits: g.BlockedHits,
			HowToVerify: VerificationQuery{
				SQL: "select event_time, user_email, client_ip, url, dest_host, threat_category, threat_name, action, severity from events where upload_id=? and action ilike 'Blocked' and dest_host=? order by event_time asc limit 200",
				Params: map[string]any{
					"upload_id": uploadID,
					"dest_host": g.DestHost,
				},
			},
		}
		out = append(out, Candidate{
			UploadID:   uploadID,
			Pattern:    d.Pattern(),
			Severity:   SeverityMedium,
			Confidence: Score(SeverityMedium, ev),
			Title:      fmt.Sprintf("Blocked traffic concentrated to %s", g.DestHost),
			Summary: fmt.Sprintf(
				"%s accounts for %d blocked events. Worth pivoting into users/IPs and timeline.",
				g.DestHost, g.BlockedHits),
			Evidence: ev,
		})
	}
	return out, nil
}
