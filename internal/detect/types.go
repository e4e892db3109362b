// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// Pattern identifies one detection heuristic.
type Pattern string

const (
	PatternBurstFromSingleIP       Pattern = "BURST_FROM_SINGLE_IP"
	PatternRepeatedBlockedCategory Pattern = "REPEATED_BLOCKED_THREAT_CATEGORY"
	PatternTopBlockedDestHost      Pattern = "TOP_BLOCKED_DEST_HOST"
	PatternMultiCategoryCompromise Pattern = "ENDPOINT_COMPROMISE_MULTI_CATEGORY"
	PatternC2Beaconing             Pattern = "C2_BEACONING_SUSPECTED"
	PatternPhishToPayloadChain     Pattern = "PHISH_TO_PAYLOAD_CHAIN_SUSPECTED"
)

// Severity is the analyst-facing triage tier of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// nullSentinel is the label rollup aggregation substitutes for NULL entity
// values. Evidence carrying it scores no entity-quality bonus.
const nullSentinel = "<null>"

// timeDisplayLayout formats bucket timestamps in finding summaries.
const timeDisplayLayout = "2006-01-02 15:04:05 MST"

// VerificationQuery is a parameterized query an analyst can re-run to
// reconstruct the event set behind a finding. Params are named after the
// placeholders in SQL.
type VerificationQuery struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params"`
}

// Entities is the common entity summary every evidence payload exposes.
// Fields absent from a pattern's grouping key stay empty. Sentinel values
// are passed through unchanged; scoring treats them as absent.
type Entities struct {
	UserEmail      string
	ClientIP       string
	DestHost       string
	ThreatCategory string
}

// Evidence is the closed union of per-pattern evidence payloads. Each
// member carries its full pattern-specific detail for JSON serialization
// and exposes the shared summary used by scoring.
type Evidence interface {
	Pattern() Pattern
	Entities() Entities
	Verification() VerificationQuery

	// boost is the pattern-specific evidence-strength contribution to the
	// confidence score. Implemented per member to keep the union closed.
	boost() float64
}

// Candidate is one detector hit before it is persisted as a finding.
type Candidate struct {
	UploadID   string
	Pattern    Pattern
	Severity   Severity
	Confidence float64
	Title      string
	Summary    string
	Evidence   Evidence
}

// Finding is a persisted detection result. Evidence is the serialized
// payload as stored; it round-trips to API consumers verbatim.
type Finding struct {
	ID          string          `json:"id"`
	UploadID    string          `json:"upload_id"`
	PatternName string          `json:"pattern_name"`
	Severity    string          `json:"severity"`
	Confidence  float64         `json:"confidence"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Evidence    json.RawMessage `json:"evidence"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Detector is one member of the battery. Implementations are independent
// and stateless between calls; Evaluate reads the upload's rollup and
// returns zero or more scored candidates.
type Detector interface {
	Pattern() Pattern
	Evaluate(ctx context.Context, uploadID string) ([]Candidate, error)
}
