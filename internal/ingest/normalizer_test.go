// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

func TestNormalizeFullRecord(t *testing.T) {
	line := []byte(`{"event":{"datetime":"2026-03-01 12:34:56","event_id":"ev-1",` +
		`"vendor":"Zscaler","action":"Blocked","reason":"policy","severity":"High",` +
		`"status":403,"user":"alice@example.com","department":"Eng","location":"NYC",` +
		`"ClientIP":"10.0.0.1","serverip":"93.184.216.34","hostname":"evil.example",` +
		`"url":"https://evil.example/x","requestmethod":"GET","urlcategory":"Malware Sites",` +
		`"threatcategory":"Botnet","threatname":"Zeus","riskscore":90,` +
		`"requestsize":"512","responsesize":1024,"transactionsize":1536}}`)

	ev, err := Normalize("up-1", line)
	require.NoError(t, err)

	assert.Equal(t, "up-1", ev.UploadID)
	require.NotNil(t, ev.EventTime)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 34, 56, 0, time.UTC), *ev.EventTime)
	assert.Equal(t, "ev-1", *ev.EventID)
	assert.Equal(t, "Zscaler", *ev.Vendor)
	assert.Equal(t, "Blocked", *ev.Action)
	assert.Equal(t, "policy", *ev.Reason)
	assert.Equal(t, "High", *ev.Severity)
	assert.Equal(t, int64(403), *ev.Status)
	assert.Equal(t, "alice@example.com", *ev.UserEmail)
	assert.Equal(t, "Eng", *ev.Department)
	assert.Equal(t, "NYC", *ev.Location)
	assert.Equal(t, "10.0.0.1", *ev.ClientIP)
	assert.Equal(t, "93.184.216.34", *ev.ServerIP)
	assert.Equal(t, "evil.example", *ev.DestHost)
	assert.Equal(t, "https://evil.example/x", *ev.URL)
	assert.Equal(t, "GET", *ev.RequestMethod)
	assert.Equal(t, "Malware Sites", *ev.URLCategory)
	assert.Equal(t, "Botnet", *ev.ThreatCategory)
	assert.Equal(t, "Zeus", *ev.ThreatName)
	assert.Equal(t, int64(90), *ev.RiskScore)
	assert.Equal(t, int64(512), *ev.RequestSize, "quoted numbers parse")
	assert.Equal(t, int64(1024), *ev.ResponseSize)
	assert.Equal(t, int64(1536), *ev.TransactionSize)
	assert.JSONEq(t, string(line), string(ev.Raw), "raw retains the whole original object")
}

func TestNormalizeTolerantFields(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, ev *models.Event)
	}{
		{
			name: "missing envelope treated as bare object",
			line: `{"datetime":"2026-03-01 00:00:00","user":"bob@example.com"}`,
			check: func(t *testing.T, ev *models.Event) {
				require.NotNil(t, ev.UserEmail)
				assert.Equal(t, "bob@example.com", *ev.UserEmail)
				require.NotNil(t, ev.EventTime)
			},
		},
		{
			name: "bad timestamp yields nil event time",
			line: `{"event":{"datetime":"03/01/2026 12:00","user":"bob@example.com"}}`,
			check: func(t *testing.T, ev *models.Event) {
				assert.Nil(t, ev.EventTime)
				require.NotNil(t, ev.UserEmail)
			},
		},
		{
			name: "unparseable int yields nil",
			line: `{"event":{"riskscore":"not-a-number","status":null}}`,
			check: func(t *testing.T, ev *models.Event) {
				assert.Nil(t, ev.RiskScore)
				assert.Nil(t, ev.Status)
			},
		},
		{
			name: "empty object keeps only upload id and raw",
			line: `{"event":{}}`,
			check: func(t *testing.T, ev *models.Event) {
				assert.Nil(t, ev.EventTime)
				assert.Nil(t, ev.Action)
				assert.NotEmpty(t, ev.Raw)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize("up-1", []byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, "up-1", ev.UploadID)
			tt.check(t, ev)
		})
	}
}

func TestNormalizeRejectsInvalidJSON(t *testing.T) {
	for _, line := range []string{
		"not json",
		`{"event":`,
		`[1,2,3]`,
	} {
		_, err := Normalize("up-1", []byte(line))
		assert.Error(t, err, "line %q", line)
	}
}
