// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Event is one normalized proxy log record.
//
// Every vendor field is optional: absence or an unparseable value yields a nil
// pointer, never a rejected record. The only hard invariant is a non-empty
// UploadID. EventTime is UTC; records whose timestamp could not be parsed keep
// a nil EventTime and are excluded from minute rollups (they remain reachable
// through raw event queries).
//
// Raw retains the original vendor line verbatim. It is the source of truth for
// audit and citation regardless of how many canonical fields were extracted.
type Event struct {
	UploadID string `json:"upload_id"`

	EventTime *time.Time `json:"event_time,omitempty"`
	EventID   *string    `json:"event_id,omitempty"`
	Vendor    *string    `json:"vendor,omitempty"`

	Action   *string `json:"action,omitempty"`
	Reason   *string `json:"reason,omitempty"`
	Severity *string `json:"severity,omitempty"`
	Status   *int64  `json:"status,omitempty"`

	UserEmail  *string `json:"user_email,omitempty"`
	Department *string `json:"department,omitempty"`
	Location   *string `json:"location,omitempty"`

	ClientIP      *string `json:"client_ip,omitempty"`
	ServerIP      *string `json:"server_ip,omitempty"`
	DestHost      *string `json:"dest_host,omitempty"`
	URL           *string `json:"url,omitempty"`
	RequestMethod *string `json:"request_method,omitempty"`

	URLCategory    *string `json:"url_category,omitempty"`
	ThreatCategory *string `json:"threat_category,omitempty"`
	ThreatName     *string `json:"threat_name,omitempty"`
	RiskScore      *int64  `json:"risk_score,omitempty"`

	RequestSize     *int64 `json:"request_size,omitempty"`
	ResponseSize    *int64 `json:"response_size,omitempty"`
	TransactionSize *int64 `json:"transaction_size,omitempty"`

	Raw json.RawMessage `json:"raw"`
}

// RollupBucket is one row of the consumer rollup lookup: totals summed per
// minute bucket and one entity dimension, strongest first. Entity is nil
// when the grouped column was null for every underlying event.
type RollupBucket struct {
	Bucket time.Time `json:"bucket"`
	Entity *string   `json:"entity"`
	Hits   int64     `json:"hits"`
}

// EntityCount is one entry in a top-N frequency list. Null entity values are
// folded into a sentinel label ("<null>" for entities, "None" for threat
// categories) rather than dropped.
type EntityCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// TimeRange is the min/max event timestamp observed in an upload. Both ends
// are nil when the upload has no timestamped events.
type TimeRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// UploadFeatures is the whole-upload summary-statistics document. At most one
// row exists per upload; recomputation overwrites it and refreshes ComputedAt.
type UploadFeatures struct {
	UploadID    string    `json:"upload_id"`
	TotalEvents int64     `json:"total_events"`
	TimeRange   TimeRange `json:"time_range"`
	Blocked     int64     `json:"blocked"`
	Allowed     int64     `json:"allowed"`

	TopUsers            []EntityCount `json:"top_users"`
	TopClientIPs        []EntityCount `json:"top_ips"`
	TopDestHosts        []EntityCount `json:"top_hosts"`
	TopThreatCategories []EntityCount `json:"top_threat_categories"`

	ComputedAt time.Time `json:"computed_at"`
}
