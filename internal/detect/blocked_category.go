// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
)

// BlockedCategoryConfig tunes the repeated-blocked-category detector.
type BlockedCategoryConfig struct {
	// MinBlockedHits is the blocked count one (user, IP, category) tuple
	// must accumulate across the upload.
	MinBlockedHits int64
	MaxFindings    int
}

// DefaultBlockedCategoryConfig returns the standard repeated-block
// thresholds.
func DefaultBlockedCategoryConfig() BlockedCategoryConfig {
	return BlockedCategoryConfig{
		MinBlockedHits: 25,
		MaxFindings:    25,
	}
}

// BlockedCategoryDetector flags user/IP pairs repeatedly blocked inside a
// single threat category, consistent with infection, beaconing, or repeated
// malicious browsing.
type BlockedCategoryDetector struct {
	reader RollupReader
	cfg    BlockedCategoryConfig
}

// NewBlockedCategoryDetector builds the detector over a rollup reader.
func NewBlockedCategoryDetector(reader RollupReader, cfg BlockedCategoryConfig) *BlockedCategoryDetector {
	return &BlockedCategoryDetector{reader: reader, cfg: cfg}
}

func (d *BlockedCategoryDetector) Pattern() Pattern { return PatternRepeatedBlockedCategory }

func (d *BlockedCategoryDetector) Evaluate(ctx context.Context, uploadID string) ([]Candidate, error) {
	groups, err := d.reader.BlockedCategoryGroups(ctx, uploadID, d.cfg.MinBlockedHits, d.cfg.MaxFindings)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, g := range groups {
		user := coalesceSentinel(g.UserEmail)
		ip := coalesceSentinel(g.ClientIP)
		ev := &RepeatedBlockedEvidence{
			UserEmail:      user,
			ClientIP:       ip,
			ThreatCategory: g.ThreatCategory,
			BlockedHits:    g.BlockedHits,
			HowToVerify: VerificationQuery{
				SQL: "select event_time, user_email, client_ip, url, dest_host, threat_category, threat_name, action, severity from events where upload_id=? and action ilike 'Blocked' and threat_category=? and client_ip=? order by event_time asc limit 200",
				Params: map[string]any{
					"upload_id":       uploadID,
					"threat_category": g.ThreatCategory,
					"client_ip":       ip,
				},
			},
		}
		out = append(out, Candidate{
			UploadID:   uploadID,
			Pattern:    d.Pattern(),
			Severity:   SeverityHigh,
			Confidence: Score(SeverityHigh, ev),
			Title:      fmt.Sprintf("Repeated blocked %s", g.ThreatCategory),
			Summary: fmt.Sprintf(
				"%s / %s triggered %d blocked events in threat category '%s'. This is consistent with infection/beaconing or repeated malicious browsing.",
				user, ip, g.BlockedHits, g.ThreatCategory),
			Evidence: ev,
		})
	}
	return out, nil
}

// coalesceSentinel folds a nullable entity into the display sentinel so
// evidence, summaries, and scoring all see the same value.
func coalesceSentinel(v *string) string {
	if v == nil || *v == "" {
		return nullSentinel
	}
	return *v
}
