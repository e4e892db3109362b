// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

type jobUpdate struct {
	status   models.JobStatus
	inserted int64
	badLines int64
	errMsg   *string
}

type fakeStorage struct {
	events      []*models.Event
	updates     []jobUpdate
	insertErr   error
	featuresErr error
	rollupErr   error
	featured    []string
	rolled      []string
	rollupRows  int64
}

func (f *fakeStorage) InsertEventBatch(_ context.Context, events []*models.Event) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStorage) UpdateIngestJob(_ context.Context, _ string, status models.JobStatus, inserted, badLines int64, errMsg *string) error {
	f.updates = append(f.updates, jobUpdate{status, inserted, badLines, errMsg})
	return nil
}

func (f *fakeStorage) ComputeUploadFeatures(_ context.Context, uploadID string, _ int) (*models.UploadFeatures, error) {
	if f.featuresErr != nil {
		return nil, f.featuresErr
	}
	f.featured = append(f.featured, uploadID)
	return &models.UploadFeatures{UploadID: uploadID}, nil
}

func (f *fakeStorage) RebuildMinuteRollup(_ context.Context, uploadID string) (int64, error) {
	if f.rollupErr != nil {
		return 0, f.rollupErr
	}
	f.rolled = append(f.rolled, uploadID)
	return f.rollupRows, nil
}

func writeStagedFile(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600))
	return path
}

func testRunner(store *fakeStorage, batchSize int) *Runner {
	return NewRunner(store, store, store, store, config.IngestConfig{
		BatchSize:    batchSize,
		MaxLineBytes: 1 << 20,
		TopN:         20,
	})
}

func TestRunnerHappyPath(t *testing.T) {
	lines := []string{
		`{"event":{"datetime":"2026-03-01 12:00:00","user":"a@example.com"}}`,
		``,
		`   `,
		`not json at all`,
		`{"event":{"datetime":"2026-03-01 12:00:30","user":"b@example.com"}}`,
		`{"event":{"datetime":"bogus","user":"c@example.com"}}`,
	}
	path := writeStagedFile(t, lines)
	store := &fakeStorage{rollupRows: 2}
	runner := testRunner(store, 2)

	res, err := runner.Run(context.Background(), "job-1", "up-1", path)
	require.NoError(t, err)

	// Blank lines are skipped silently; the unparseable JSON line is a bad
	// line; the bogus timestamp still inserts with a nil event time.
	assert.Equal(t, int64(3), res.Inserted)
	assert.Equal(t, int64(1), res.BadLines)
	assert.Equal(t, int64(2), res.RollupRows)
	assert.Len(t, store.events, 3)
	assert.Nil(t, store.events[2].EventTime)

	assert.Equal(t, []string{"up-1"}, store.featured)
	assert.Equal(t, []string{"up-1"}, store.rolled)

	require.NotEmpty(t, store.updates)
	assert.Equal(t, models.JobRunning, store.updates[0].status)
	last := store.updates[len(store.updates)-1]
	assert.Equal(t, models.JobDone, last.status)
	assert.Equal(t, int64(3), last.inserted)
	assert.Equal(t, int64(1), last.badLines)
	assert.Nil(t, last.errMsg)
}

func TestRunnerFlushesInBatches(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf(`{"event":{"datetime":"2026-03-01 12:00:%02d"}}`, i))
	}
	path := writeStagedFile(t, lines)
	store := &fakeStorage{}
	runner := testRunner(store, 2)

	res, err := runner.Run(context.Background(), "job-1", "up-1", path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Inserted)

	// running(start) + one progress update per flush (2+2+1) + done.
	var progress []int64
	for _, u := range store.updates[1 : len(store.updates)-1] {
		assert.Equal(t, models.JobRunning, u.status)
		progress = append(progress, u.inserted)
	}
	assert.Equal(t, []int64{2, 4, 5}, progress)
}

func TestRunnerOversizedLine(t *testing.T) {
	long := `{"event":{"datetime":"2026-03-01 12:00:01","urlcategory":"` +
		strings.Repeat("x", 512) + `"}}`
	lines := []string{
		`{"event":{"datetime":"2026-03-01 12:00:00","user":"a@example.com"}}`,
		long,
		`{"event":{"datetime":"2026-03-01 12:00:02","user":"b@example.com"}}`,
		long, // final line, no trailing newline
	}
	path := writeStagedFile(t, lines)
	store := &fakeStorage{}
	runner := NewRunner(store, store, store, store, config.IngestConfig{
		BatchSize:    10,
		MaxLineBytes: 256,
		TopN:         20,
	})

	res, err := runner.Run(context.Background(), "job-1", "up-1", path)
	require.NoError(t, err, "an oversized line does not end the run")

	// Each oversized line is one bad line; the lines around them survive.
	assert.Equal(t, int64(2), res.Inserted)
	assert.Equal(t, int64(2), res.BadLines)

	last := store.updates[len(store.updates)-1]
	assert.Equal(t, models.JobDone, last.status)
	assert.Equal(t, int64(2), last.badLines)
}

func TestRunnerStorageFailure(t *testing.T) {
	path := writeStagedFile(t, []string{`{"event":{"datetime":"2026-03-01 12:00:00"}}`})
	store := &fakeStorage{insertErr: errors.New("disk full")}
	runner := testRunner(store, 1)

	_, err := runner.Run(context.Background(), "job-1", "up-1", path)
	require.Error(t, err)

	last := store.updates[len(store.updates)-1]
	assert.Equal(t, models.JobFailed, last.status)
	require.NotNil(t, last.errMsg)
	assert.Contains(t, *last.errMsg, "disk full")
	assert.Empty(t, store.featured, "derived artifacts are not rebuilt on failure")
}

func TestRunnerMissingFile(t *testing.T) {
	store := &fakeStorage{}
	runner := testRunner(store, 1)

	_, err := runner.Run(context.Background(), "job-1", "up-1", "/nonexistent/export.jsonl")
	require.Error(t, err)
	last := store.updates[len(store.updates)-1]
	assert.Equal(t, models.JobFailed, last.status)
	require.NotNil(t, last.errMsg)
}

func TestRunnerRollupFailure(t *testing.T) {
	path := writeStagedFile(t, []string{`{"event":{"datetime":"2026-03-01 12:00:00"}}`})
	store := &fakeStorage{rollupErr: errors.New("rollup broke")}
	runner := testRunner(store, 10)

	_, err := runner.Run(context.Background(), "job-1", "up-1", path)
	require.Error(t, err)

	last := store.updates[len(store.updates)-1]
	assert.Equal(t, models.JobFailed, last.status)
	// Events already inserted stay counted in the terminal record.
	assert.Equal(t, int64(1), last.inserted)
}
