// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/metrics"
)

// Battery runs a registered set of detectors over one upload's rollup and
// persists the resulting findings. Detectors run sequentially; one failing
// detector is recorded and skipped, the rest still run.
type Battery struct {
	detectors []Detector
	findings  FindingStore
}

// NewBattery assembles a battery from arbitrary detectors.
func NewBattery(findings FindingStore, detectors ...Detector) *Battery {
	return &Battery{detectors: detectors, findings: findings}
}

// NewDefaultBattery assembles the standard six-detector battery with default
// thresholds over one rollup reader.
func NewDefaultBattery(reader RollupReader, findings FindingStore) *Battery {
	return NewBattery(findings,
		NewBurstDetector(reader, DefaultBurstConfig()),
		NewBlockedCategoryDetector(reader, DefaultBlockedCategoryConfig()),
		NewBlockedHostDetector(reader, DefaultBlockedHostConfig()),
		NewMultiCategoryDetector(reader, DefaultMultiCategoryConfig()),
		NewBeaconingDetector(reader, DefaultBeaconingConfig()),
		NewPhishChainDetector(reader, DefaultPhishChainConfig()),
	)
}

// Patterns lists the registered detector patterns in run order.
func (b *Battery) Patterns() []Pattern {
	out := make([]Pattern, 0, len(b.detectors))
	for _, d := range b.detectors {
		out = append(out, d.Pattern())
	}
	return out
}

// RunSummary reports one battery run. Findings are append-only, so Created
// holds only ids minted by this run; FailedPatterns lists detectors whose
// evaluation or persistence errored before contributing all their findings.
type RunSummary struct {
	UploadID       string    `json:"upload_id"`
	Created        []string  `json:"created_finding_ids"`
	FailedPatterns []Pattern `json:"failed_patterns,omitempty"`
}

// Run evaluates every registered detector against the upload and appends one
// finding per candidate. Errors are isolated per detector: an evaluation
// error, or a persist error mid-way through a detector's candidates, abandons
// only that detector's remaining work while the rest of the battery proceeds.
// Findings already persisted stay persisted.
func (b *Battery) Run(ctx context.Context, uploadID string) (*RunSummary, error) {
	log := logging.With().Str("upload_id", uploadID).Logger()
	summary := &RunSummary{UploadID: uploadID, Created: []string{}}

	for _, det := range b.detectors {
		pattern := string(det.Pattern())
		start := time.Now()

		candidates, err := det.Evaluate(ctx, uploadID)
		metrics.DetectorDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DetectorErrors.WithLabelValues(pattern).Inc()
			summary.FailedPatterns = append(summary.FailedPatterns, det.Pattern())
			log.Error().Err(err).Str("pattern", pattern).Msg("detector failed")
			continue
		}

		persisted := 0
		for i := range candidates {
			id, err := b.persist(ctx, &candidates[i])
			if err != nil {
				metrics.DetectorErrors.WithLabelValues(pattern).Inc()
				summary.FailedPatterns = append(summary.FailedPatterns, det.Pattern())
				log.Error().Err(err).Str("pattern", pattern).Msg("finding persist failed")
				break
			}
			summary.Created = append(summary.Created, id)
			persisted++
		}
		metrics.FindingsEmitted.WithLabelValues(pattern).Add(float64(persisted))
		log.Debug().
			Str("pattern", pattern).
			Int("candidates", len(candidates)).
			Int("persisted", persisted).
			Msg("detector evaluated")
	}

	log.Info().
		Int("created", len(summary.Created)).
		Int("failed_detectors", len(summary.FailedPatterns)).
		Msg("detection run complete")
	return summary, nil
}

func (b *Battery) persist(ctx context.Context, c *Candidate) (string, error) {
	payload, err := json.Marshal(c.Evidence)
	if err != nil {
		return "", fmt.Errorf("marshal evidence for %s: %w", c.Pattern, err)
	}
	f := &Finding{
		UploadID:    c.UploadID,
		PatternName: string(c.Pattern),
		Severity:    string(c.Severity),
		Confidence:  c.Confidence,
		Title:       c.Title,
		Summary:     c.Summary,
		Evidence:    payload,
	}
	if err := b.findings.InsertFinding(ctx, f); err != nil {
		return "", fmt.Errorf("persist %s finding: %w", c.Pattern, err)
	}
	return f.ID, nil
}
