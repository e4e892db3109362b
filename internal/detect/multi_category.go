// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
)

// MultiCategoryConfig tunes the multi-category compromise detector.
type MultiCategoryConfig struct {
	// MinCategories is the distinct blocked threat categories one user/IP
	// pair must span.
	MinCategories int64
	// MinBlockedHits is the total blocked count the pair must accumulate.
	MinBlockedHits int64
	// CriticalBlockedHits escalates severity from high to critical.
	CriticalBlockedHits int64
	MaxFindings         int
}

// DefaultMultiCategoryConfig returns the standard multi-category thresholds.
func DefaultMultiCategoryConfig() MultiCategoryConfig {
	return MultiCategoryConfig{
		MinCategories:       3,
		MinBlockedHits:      12,
		CriticalBlockedHits: 40,
		MaxFindings:         10,
	}
}

// MultiCategoryDetector flags user/IP pairs with blocked activity spread
// across several threat categories. Breadth across categories suggests
// automated malicious activity rather than casual browsing.
type MultiCategoryDetector struct {
	reader RollupReader
	cfg    MultiCategoryConfig
}

// NewMultiCategoryDetector builds the detector over a rollup reader.
func NewMultiCategoryDetector(reader RollupReader, cfg MultiCategoryConfig) *MultiCategoryDetector {
	return &MultiCategoryDetector{reader: reader, cfg: cfg}
}

func (d *MultiCategoryDetector) Pattern() Pattern { return PatternMultiCategoryCompromise }

const multiCategoryOutcome = "SUSPECTED_ENDPOINT_COMPROMISE_MULTI_STAGE"

func (d *MultiCategoryDetector) Evaluate(ctx context.Context, uploadID string) ([]Candidate, error) {
	groups, err := d.reader.MultiCategoryGroups(ctx, uploadID,
		d.cfg.MinCategories, d.cfg.MinBlockedHits, d.cfg.MaxFindings)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, g := range groups {
		ev := &MultiCategoryEvidence{
			SecurityOutcome:          multiCategoryOutcome,
			UserEmail:                g.UserEmail,
			ClientIP:                 g.ClientIP,
			BlockedHits:              g.BlockedHits,
			DistinctThreatCategories: g.DistinctCats,
			HowToVerify: VerificationQuery{
				SQL: `SELECT threat_category, SUM(total) AS hits
FROM event_rollup_minute
WHERE upload_id = ?
  AND action ILIKE 'Blocked'
  AND COALESCE(user_email, '<null>') = ?
  AND COALESCE(client_ip, '<null>') = ?
GROUP BY threat_category
ORDER BY hits DESC`,
				Params: map[string]any{
					"upload_id":  uploadID,
					"user_email": g.UserEmail,
					"client_ip":  g.ClientIP,
				},
			},
			// Initial Access, Command and Control (lightweight mapping).
			MITRE: []string{"TA0001", "TA0011"},
		}

		severity := SeverityHigh
		if g.BlockedHits >= d.cfg.CriticalBlockedHits {
			severity = SeverityCritical
		}

		out = append(out, Candidate{
			UploadID:   uploadID,
			Pattern:    d.Pattern(),
			Severity:   severity,
			Confidence: Score(severity, ev),
			Title:      "Suspected endpoint compromise (multi-stage) from one host/user",
			Summary: fmt.Sprintf(
				"Security outcome: %s. %s / %s generated blocked activity across %d threat categories (%d total blocked hits). This breadth suggests automated malicious activity rather than casual browsing.",
				multiCategoryOutcome, g.UserEmail, g.ClientIP, g.DistinctCats, g.BlockedHits),
			Evidence: ev,
		})
	}
	return out, nil
}
