// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

// Confidence scoring. Score is a pure function of severity and evidence:
// a severity prior, plus a small bonus per concrete entity in the evidence,
// plus a pattern-specific evidence-strength boost. The result is clamped to
// [0.10, 0.99] so no finding ever presents as impossible or certain.

const (
	minConfidence = 0.10
	maxConfidence = 0.99

	// entityBonus is added once per non-sentinel entity field, up to 0.12.
	entityBonus = 0.03
)

func severityBase(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return 0.72
	case SeverityHigh:
		return 0.62
	case SeverityMedium:
		return 0.50
	case SeverityLow:
		return 0.38
	default:
		return 0.50
	}
}

// Score computes the confidence for a candidate finding.
func Score(severity Severity, ev Evidence) float64 {
	conf := severityBase(severity) + entityBoost(ev.Entities()) + ev.boost()
	return clamp(conf, minConfidence, maxConfidence)
}

func entityBoost(e Entities) float64 {
	boost := 0.0
	for _, v := range []string{e.UserEmail, e.ClientIP, e.DestHost, e.ThreatCategory} {
		if v != "" && v != nullSentinel {
			boost += entityBonus
		}
	}
	return boost
}

// ratioScore maps how far a value sits past its detector threshold onto
// [0, 1]. The score reaches 1 at threshold*capMultiple and is 0 at or below
// the threshold, so it grows monotonically with the value.
func ratioScore(value, threshold, capMultiple float64) float64 {
	if threshold <= 0 {
		return 0
	}
	denom := capMultiple - 1.0
	if denom < 1e-9 {
		denom = 1e-9
	}
	return clamp((value-threshold)/(threshold*denom), 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
