// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/database"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/detect"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/ingest"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/jobs"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

type testEnv struct {
	handler http.Handler
	db      *database.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbCfg := &config.DatabaseConfig{
		Path:             filepath.Join(t.TempDir(), "api.duckdb"),
		MaxMemory:        "256MB",
		Threads:          2,
		StatementTimeout: 30 * time.Second,
	}
	db, err := database.New(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := detect.NewDuckDBStore(db.Conn())
	battery := detect.NewDefaultBattery(store, store)
	runner := ingest.NewRunner(db, db, db, db, config.IngestConfig{
		BatchSize:    1000,
		MaxLineBytes: 1 << 20,
		TopN:         20,
	})

	pool := jobs.NewPool(config.JobsConfig{Workers: 2, QueueSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv := NewServer(db, store, battery, runner, pool, config.APIConfig{
		DefaultEventLimit: 200,
		MaxEventLimit:     500,
	})
	return &testEnv{
		handler: srv.Router(config.ServerConfig{}),
		db:      db,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) waitForJob(t *testing.T, jobID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/api/v1/ingest/jobs/"+jobID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		job := decode[models.IngestJob](t, rec)
		return job.Status == models.JobDone
	}, 10*time.Second, 50*time.Millisecond, "ingest job did not finish")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func stageFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.jsonl")
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateUploadValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/uploads", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/uploads", map[string]string{
		"stored_path": "/does/not/exist.jsonl",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadLifecycle(t *testing.T) {
	env := newTestEnv(t)
	path := stageFile(t, `{"event":{"datetime":"2026-03-01 12:00:00"}}`)

	rec := env.do(t, http.MethodPost, "/api/v1/uploads", map[string]string{
		"filename":    "export.jsonl",
		"stored_path": path,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createUploadResponse](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "export.jsonl", created.Filename)
	assert.Positive(t, created.SizeBytes)

	// Registration starts ingestion immediately.
	require.NotEmpty(t, created.IngestJobID)
	assert.Equal(t, string(models.JobQueued), created.IngestStatus)
	env.waitForJob(t, created.IngestJobID)

	rec = env.do(t, http.MethodGet, "/api/v1/uploads/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/uploads/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/uploads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Upload](t, rec)
	assert.Len(t, list, 1)

	// An explicit re-run mints a fresh job and appends the file's events
	// again; nothing deduplicates raw events across runs.
	rec = env.do(t, http.MethodPost, "/api/v1/ingest/"+created.ID, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[map[string]string](t, rec)
	require.NotEmpty(t, accepted["job_id"])
	assert.NotEqual(t, created.IngestJobID, accepted["job_id"])
	env.waitForJob(t, accepted["job_id"])

	rec = env.do(t, http.MethodGet, "/api/v1/events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]models.Event](t, rec)
	assert.Len(t, events, 2)
}

func TestIngestDetectEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	// 30 blocked phishing events for one user/ip in one minute trips the
	// repeated-category and blocked-host detectors after rollup.
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"event":{"datetime":"2026-03-01 12:00:%02d","action":"Blocked","user":"a@example.com","ClientIP":"10.0.0.1","hostname":"evil.example","threatcategory":"Phishing"}}`,
			i%60))
	}
	lines = append(lines, "not json")
	path := stageFile(t, lines...)

	rec := env.do(t, http.MethodPost, "/api/v1/uploads", map[string]string{"stored_path": path})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createUploadResponse](t, rec)
	up := created.Upload
	jobID := created.IngestJobID
	require.NotEmpty(t, jobID)
	env.waitForJob(t, jobID)

	rec = env.do(t, http.MethodGet, "/api/v1/ingest/jobs/"+jobID, nil)
	job := decode[models.IngestJob](t, rec)
	assert.Equal(t, int64(30), job.InsertedEvents)
	assert.Equal(t, int64(1), job.BadLines)

	// Features were computed as part of the run.
	rec = env.do(t, http.MethodGet, "/api/v1/features/"+up.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	feats := decode[models.UploadFeatures](t, rec)
	assert.Equal(t, int64(30), feats.TotalEvents)
	assert.Equal(t, int64(30), feats.Blocked)

	// Raw events are queryable with entity filters.
	rec = env.do(t, http.MethodGet, "/api/v1/events/"+up.ID+"?client_ip=10.0.0.1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]models.Event](t, rec)
	assert.Len(t, events, 5)

	// The rollup lookup sums per bucket and entity with a having floor.
	rec = env.do(t, http.MethodGet, "/api/v1/rollup/"+up.ID+"?min_total=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rollup := decode[[]models.RollupBucket](t, rec)
	require.Len(t, rollup, 1)
	assert.Equal(t, int64(30), rollup[0].Hits)
	require.NotNil(t, rollup[0].Entity)
	assert.Equal(t, "10.0.0.1", *rollup[0].Entity)

	// Trigger detection and wait for findings to appear.
	rec = env.do(t, http.MethodPost, "/api/v1/detect/"+up.ID, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var findings []detect.Finding
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/findings/"+up.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		findings = decode[[]detect.Finding](t, rec)
		return len(findings) > 0
	}, 10*time.Second, 50*time.Millisecond, "no findings appeared")

	patterns := map[string]bool{}
	for _, f := range findings {
		patterns[f.PatternName] = true
		assert.GreaterOrEqual(t, f.Confidence, 0.10)
		assert.LessOrEqual(t, f.Confidence, 0.99)
		assert.NotEmpty(t, f.Evidence)
	}
	assert.True(t, patterns["REPEATED_BLOCKED_THREAT_CATEGORY"])
	assert.True(t, patterns["TOP_BLOCKED_DEST_HOST"])
}

func TestStartIngestUnknownUpload(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/ingest/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeaturesNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/features/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryEventsBadTimeParam(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/events/up-1?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryRollupBadMinTotal(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/rollup/up-1?min_total=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryRollupBadGroupBy(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/rollup/up-1?group_by=action", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClampLimit(t *testing.T) {
	s := &Server{cfg: config.APIConfig{DefaultEventLimit: 200, MaxEventLimit: 500}}

	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"empty uses default", "", 200},
		{"within range", "50", 50},
		{"at the cap", "500", 500},
		{"over the cap", "1000", 500},
		{"zero uses default", "0", 200},
		{"negative uses default", "-5", 200},
		{"garbage uses default", "abc", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.clampLimit(tt.raw))
		})
	}
}

func TestFindingsEmptyList(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/findings/up-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
