// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

// eventTimeLayout is the vendor's naive timestamp format. Values are taken
// as UTC.
const eventTimeLayout = "2006-01-02 15:04:05"

// Normalize parses one JSONL line from a Zscaler NSS web export into a
// canonical event. Vendor records arrive wrapped in an {"event": {...}}
// envelope; records without the envelope are treated as bare event objects.
//
// Extraction is best-effort per field: a missing or unparseable value leaves
// the canonical field nil and never rejects the record. Only lines that are
// not valid JSON objects produce an error. The original object is retained
// verbatim in Raw.
func Normalize(uploadID string, line []byte) (*models.Event, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(line, &outer); err != nil {
		return nil, fmt.Errorf("invalid json line: %w", err)
	}

	inner := outer
	if enc, ok := outer["event"]; ok {
		var ev map[string]json.RawMessage
		if err := json.Unmarshal(enc, &ev); err == nil {
			inner = ev
		}
	}

	out := &models.Event{
		UploadID: uploadID,
		Raw:      json.RawMessage(line),
	}

	out.EventTime = parseTime(inner, "datetime")
	out.EventID = fieldString(inner, "event_id")
	out.Vendor = fieldString(inner, "vendor")
	out.Action = fieldString(inner, "action")
	out.Reason = fieldString(inner, "reason")
	out.Severity = fieldString(inner, "severity")
	out.Status = fieldInt(inner, "status")
	out.UserEmail = fieldString(inner, "user")
	out.Department = fieldString(inner, "department")
	out.Location = fieldString(inner, "location")
	out.ClientIP = fieldString(inner, "ClientIP")
	out.ServerIP = fieldString(inner, "serverip")
	out.DestHost = fieldString(inner, "hostname")
	out.URL = fieldString(inner, "url")
	out.RequestMethod = fieldString(inner, "requestmethod")
	out.URLCategory = fieldString(inner, "urlcategory")
	out.ThreatCategory = fieldString(inner, "threatcategory")
	out.ThreatName = fieldString(inner, "threatname")
	out.RiskScore = fieldInt(inner, "riskscore")
	out.RequestSize = fieldInt(inner, "requestsize")
	out.ResponseSize = fieldInt(inner, "responsesize")
	out.TransactionSize = fieldInt(inner, "transactionsize")

	return out, nil
}

func fieldString(m map[string]json.RawMessage, key string) *string {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	// Non-string scalars (numbers, bools) are kept as their literal text.
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return &trimmed
}

// fieldInt extracts an integer field. Vendors emit numeric fields both as
// JSON numbers and quoted strings; either works. Any parse failure yields
// nil, matching the tolerant per-field contract.
func fieldInt(m map[string]json.RawMessage, key string) *int64 {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		v := int64(f)
		return &v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return &v
		}
	}
	return nil
}

func parseTime(m map[string]json.RawMessage, key string) *time.Time {
	s := fieldString(m, key)
	if s == nil {
		return nil
	}
	t, err := time.ParseInLocation(eventTimeLayout, strings.TrimSpace(*s), time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
