// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package detect

import "time"

// The boost weights and their reference thresholds are scoring constants.
// They intentionally mirror the default detector thresholds but do not track
// them: retuning a detector's query threshold changes what surfaces, not how
// existing evidence is scored.

// BurstEvidence backs BURST_FROM_SINGLE_IP: one client IP producing an
// outsized event count inside one minute bucket.
type BurstEvidence struct {
	Bucket       time.Time         `json:"bucket"`
	ClientIP     string            `json:"client_ip"`
	HitsInMinute int64             `json:"hits_in_minute"`
	HowToVerify  VerificationQuery `json:"how_to_verify"`
}

func (e *BurstEvidence) Pattern() Pattern                { return PatternBurstFromSingleIP }
func (e *BurstEvidence) Entities() Entities              { return Entities{ClientIP: e.ClientIP} }
func (e *BurstEvidence) Verification() VerificationQuery { return e.HowToVerify }
func (e *BurstEvidence) boost() float64 {
	return 0.30 * ratioScore(float64(e.HitsInMinute), 200, 5)
}

// RepeatedBlockedEvidence backs REPEATED_BLOCKED_THREAT_CATEGORY: one
// user/IP pair repeatedly blocked within a single threat category.
type RepeatedBlockedEvidence struct {
	UserEmail      string            `json:"user_email"`
	ClientIP       string            `json:"client_ip"`
	ThreatCategory string            `json:"threat_category"`
	BlockedHits    int64             `json:"blocked_hits"`
	HowToVerify    VerificationQuery `json:"how_to_verify"`
}

func (e *RepeatedBlockedEvidence) Pattern() Pattern { return PatternRepeatedBlockedCategory }
func (e *RepeatedBlockedEvidence) Entities() Entities {
	return Entities{UserEmail: e.UserEmail, ClientIP: e.ClientIP, ThreatCategory: e.ThreatCategory}
}
func (e *RepeatedBlockedEvidence) Verification() VerificationQuery { return e.HowToVerify }
func (e *RepeatedBlockedEvidence) boost() float64 {
	return 0.28 * ratioScore(float64(e.BlockedHits), 25, 6)
}

// BlockedHostEvidence backs TOP_BLOCKED_DEST_HOST: blocked traffic
// concentrating on one destination host.
type BlockedHostEvidence struct {
	DestHost    string            `json:"dest_host"`
	BlockedHits int64             `json:"blocked_hits"`
	HowToVerify VerificationQuery `json:"how_to_verify"`
}

func (e *BlockedHostEvidence) Pattern() Pattern                { return PatternTopBlockedDestHost }
func (e *BlockedHostEvidence) Entities() Entities              { return Entities{DestHost: e.DestHost} }
func (e *BlockedHostEvidence) Verification() VerificationQuery { return e.HowToVerify }
func (e *BlockedHostEvidence) boost() float64 {
	return 0.22 * ratioScore(float64(e.BlockedHits), 15, 6)
}

// MultiCategoryEvidence backs ENDPOINT_COMPROMISE_MULTI_CATEGORY: one
// user/IP pair blocked across several distinct threat categories, a breadth
// signal for staged compromise.
type MultiCategoryEvidence struct {
	SecurityOutcome          string            `json:"security_outcome"`
	UserEmail                string            `json:"user_email"`
	ClientIP                 string            `json:"client_ip"`
	BlockedHits              int64             `json:"blocked_hits"`
	DistinctThreatCategories int64             `json:"distinct_threat_categories"`
	HowToVerify              VerificationQuery `json:"how_to_verify"`
	MITRE                    []string          `json:"mitre"`
}

func (e *MultiCategoryEvidence) Pattern() Pattern { return PatternMultiCategoryCompromise }
func (e *MultiCategoryEvidence) Entities() Entities {
	return Entities{UserEmail: e.UserEmail, ClientIP: e.ClientIP}
}
func (e *MultiCategoryEvidence) Verification() VerificationQuery { return e.HowToVerify }
func (e *MultiCategoryEvidence) boost() float64 {
	return 0.20*ratioScore(float64(e.DistinctThreatCategories), 3, 4) +
		0.22*ratioScore(float64(e.BlockedHits), 12, 6)
}

// BeaconingEvidence backs C2_BEACONING_SUSPECTED: repeated blocked
// callbacks to one destination spread across distinct minutes. The category
// filter behind it is already C2-specific, which its boost reflects with a
// small flat term.
type BeaconingEvidence struct {
	SecurityOutcome string            `json:"security_outcome"`
	UserEmail       string            `json:"user_email"`
	ClientIP        string            `json:"client_ip"`
	DestHost        string            `json:"dest_host"`
	ActiveMinutes   int64             `json:"active_minutes"`
	BlockedHits     int64             `json:"blocked_hits"`
	HowToVerify     VerificationQuery `json:"how_to_verify"`
	MITRE           []string          `json:"mitre"`
}

func (e *BeaconingEvidence) Pattern() Pattern { return PatternC2Beaconing }
func (e *BeaconingEvidence) Entities() Entities {
	return Entities{UserEmail: e.UserEmail, ClientIP: e.ClientIP, DestHost: e.DestHost}
}
func (e *BeaconingEvidence) Verification() VerificationQuery { return e.HowToVerify }
func (e *BeaconingEvidence) boost() float64 {
	return 0.18*ratioScore(float64(e.ActiveMinutes), 4, 5) +
		0.18*ratioScore(float64(e.BlockedHits), 8, 8) +
		0.04
}

// PhishChainEvidence backs PHISH_TO_PAYLOAD_CHAIN_SUSPECTED: blocked
// phishing activity followed by blocked payload-stage categories for the
// same user/IP inside the chain window. A tighter phish-to-payload delta
// scores higher, linearly up to +0.10 as the delta approaches zero.
type PhishChainEvidence struct {
	SecurityOutcome string            `json:"security_outcome"`
	UserEmail       string            `json:"user_email"`
	ClientIP        string            `json:"client_ip"`
	FirstPhish      time.Time         `json:"first_phish"`
	FirstPayload    time.Time         `json:"first_payload"`
	PhishHits       int64             `json:"phish_hits"`
	PayloadHits     int64             `json:"payload_hits"`
	HowToVerify     VerificationQuery `json:"how_to_verify"`
	MITRE           []string          `json:"mitre"`
}

func (e *PhishChainEvidence) Pattern() Pattern { return PatternPhishToPayloadChain }
func (e *PhishChainEvidence) Entities() Entities {
	return Entities{UserEmail: e.UserEmail, ClientIP: e.ClientIP}
}
func (e *PhishChainEvidence) Verification() VerificationQuery { return e.HowToVerify }
func (e *PhishChainEvidence) boost() float64 {
	b := 0.14*ratioScore(float64(e.PhishHits), 2, 8) +
		0.16*ratioScore(float64(e.PayloadHits), 2, 10)
	if !e.FirstPhish.IsZero() && !e.FirstPayload.IsZero() {
		deltaSec := e.FirstPayload.Sub(e.FirstPhish).Seconds()
		if deltaSec < 0 {
			deltaSec = 0
		}
		b += 0.10 * clamp(1.0-deltaSec/1800.0, 0, 1)
	}
	return b
}
