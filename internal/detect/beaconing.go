// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
)

// BeaconingConfig tunes the suspected-C2-beaconing detector.
type BeaconingConfig struct {
	// MinActiveMinutes is the distinct minute buckets the callbacks must
	// span. This is spread, not strict periodicity; the label is
	// deliberately "suspected".
	MinActiveMinutes int64
	// MinBlockedHits is the total blocked callback count required.
	MinBlockedHits int64
	MaxFindings    int
}

// DefaultBeaconingConfig returns the standard beaconing thresholds.
func DefaultBeaconingConfig() BeaconingConfig {
	return BeaconingConfig{
		MinActiveMinutes: 4,
		MinBlockedHits:   8,
		MaxFindings:      15,
	}
}

// BeaconingDetector flags repeated blocked callbacks from one user/IP to one
// destination host within C2-flavored threat categories, spread across
// multiple distinct minutes.
type BeaconingDetector struct {
	reader RollupReader
	cfg    BeaconingConfig
}

// NewBeaconingDetector builds the detector over a rollup reader.
func NewBeaconingDetector(reader RollupReader, cfg BeaconingConfig) *BeaconingDetector {
	return &BeaconingDetector{reader: reader, cfg: cfg}
}

func (d *BeaconingDetector) Pattern() Pattern { return PatternC2Beaconing }

const beaconingOutcome = "C2_BEACONING_SUSPECTED"

func (d *BeaconingDetector) Evaluate(ctx context.Context, uploadID string) ([]Candidate, error) {
	groups, err := d.reader.BeaconingGroups(ctx, uploadID,
		d.cfg.MinActiveMinutes, d.cfg.MinBlockedHits, d.cfg.MaxFindings)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, g := range groups {
		ev := &BeaconingEvidence{
			SecurityOutcome: beaconingOutcome,
			UserEmail:       g.UserEmail,
			ClientIP:        g.ClientIP,
			DestHost:        g.DestHost,
			ActiveMinutes:   g.ActiveMinutes,
			BlockedHits:     g.Hits,
			HowToVerify: VerificationQuery{
				SQL: `SELECT bucket, SUM(total) AS hits
FROM event_rollup_minute
WHERE upload_id = ?
  AND action ILIKE 'Blocked'
  AND COALESCE(user_email, '<null>') = ?
  AND COALESCE(client_ip, '<null>') = ?
  AND dest_host = ?
GROUP BY bucket
ORDER BY bucket`,
				Params: map[string]any{
					"upload_id":  uploadID,
					"user_email": g.UserEmail,
					"client_ip":  g.ClientIP,
					"dest_host":  g.DestHost,
				},
			},
			// C2, Application Layer Protocol (approx).
			MITRE: []string{"TA0011", "T1071"},
		}
		out = append(out, Candidate{
			UploadID:   uploadID,
			Pattern:    d.Pattern(),
			Severity:   SeverityHigh,
			Confidence: Score(SeverityHigh, ev),
			Title:      "C2 beaconing suspected (repeated blocked callbacks)",
			Summary: fmt.Sprintf(
				"Security outcome: %s. %s / %s repeatedly attempted to reach %s across %d distinct minutes (%d total blocked hits). Repeated callback attempts are consistent with beaconing behavior.",
				beaconingOutcome, g.UserEmail, g.ClientIP, g.DestHost, g.ActiveMinutes, g.Hits),
			Evidence: ev,
		})
	}
	return out, nil
}
