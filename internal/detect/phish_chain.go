// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
)

// PhishChainConfig tunes the phish-to-payload chain detector.
type PhishChainConfig struct {
	// WindowMinutes bounds how long after the first phishing hit the first
	// payload-stage hit may occur.
	WindowMinutes int
	// MinPhishHits is the blocked phishing count required per user/IP pair.
	MinPhishHits int64
	// MinPayloadHits is the blocked payload-stage count required.
	MinPayloadHits int64
	MaxFindings    int
}

// DefaultPhishChainConfig returns the standard chain thresholds.
func DefaultPhishChainConfig() PhishChainConfig {
	return PhishChainConfig{
		WindowMinutes:  30,
		MinPhishHits:   2,
		MinPayloadHits: 2,
		MaxFindings:    10,
	}
}

// PhishChainDetector flags user/IP pairs whose blocked phishing activity is
// followed, within the window, by blocked malware/ransomware/exfil-stage
// categories. The sequence is consistent with a phish leading to follow-on
// compromise attempts.
type PhishChainDetector struct {
	reader RollupReader
	cfg    PhishChainConfig
}

// NewPhishChainDetector builds the detector over a rollup reader.
func NewPhishChainDetector(reader RollupReader, cfg PhishChainConfig) *PhishChainDetector {
	return &PhishChainDetector{reader: reader, cfg: cfg}
}

func (d *PhishChainDetector) Pattern() Pattern { return PatternPhishToPayloadChain }

const phishChainOutcome = "PHISH_TO_PAYLOAD_CHAIN_SUSPECTED"

func (d *PhishChainDetector) Evaluate(ctx context.Context, uploadID string) ([]Candidate, error) {
	groups, err := d.reader.PhishChainGroups(ctx, uploadID, d.cfg.WindowMinutes,
		d.cfg.MinPhishHits, d.cfg.MinPayloadHits, d.cfg.MaxFindings)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, g := range groups {
		ev := &PhishChainEvidence{
			SecurityOutcome: phishChainOutcome,
			UserEmail:       g.UserEmail,
			ClientIP:        g.ClientIP,
			FirstPhish:      g.FirstPhish,
			FirstPayload:    g.FirstPayload,
			PhishHits:       g.PhishHits,
			PayloadHits:     g.PayloadHits,
			HowToVerify: VerificationQuery{
				SQL: `SELECT bucket, threat_category, SUM(total) AS hits
FROM event_rollup_minute
WHERE upload_id = ?
  AND action ILIKE 'Blocked'
  AND COALESCE(user_email, '<null>') = ?
  AND COALESCE(client_ip, '<null>') = ?
  AND (threat_category ILIKE 'Phishing%'
    OR threat_category ILIKE 'Malware%'
    OR threat_category ILIKE 'Ransomware%'
    OR threat_category ILIKE 'Botnet%'
    OR threat_category ILIKE 'Cryptomining%'
    OR threat_category ILIKE 'Data Transfer%'
    OR threat_category ILIKE 'Data Leakage%')
GROUP BY bucket, threat_category
ORDER BY bucket`,
				Params: map[string]any{
					"upload_id":  uploadID,
					"user_email": g.UserEmail,
					"client_ip":  g.ClientIP,
				},
			},
			// Initial Access, Execution, C2 (approx).
			MITRE: []string{"TA0001", "TA0002", "TA0011"},
		}
		out = append(out, Candidate{
			UploadID:   uploadID,
			Pattern:    d.Pattern(),
			Severity:   SeverityHigh,
			Confidence: Score(SeverityHigh, ev),
			Title:      "Phish to payload chain suspected",
			Summary: fmt.Sprintf(
				"Security outcome: %s. %s / %s shows blocked phishing activity followed by blocked malware/ransomware/botnet/exfil-related categories within ~%d minutes. This sequence is consistent with a phish leading to follow-on compromise attempts.",
				phishChainOutcome, g.UserEmail, g.ClientIP, d.cfg.WindowMinutes),
			Evidence: ev,
		})
	}
	return out, nil
}
