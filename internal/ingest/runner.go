// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/metrics"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

// EventWriter persists batches of normalized events atomically.
type EventWriter interface {
	InsertEventBatch(ctx context.Context, events []*models.Event) error
}

// JobSink records ingest job progress and terminal state.
type JobSink interface {
	UpdateIngestJob(ctx context.Context, jobID string, status models.JobStatus, inserted, badLines int64, errMsg *string) error
}

// Summarizer recomputes the whole-upload feature document.
type Summarizer interface {
	ComputeUploadFeatures(ctx context.Context, uploadID string, topN int) (*models.UploadFeatures, error)
}

// RollupBuilder rebuilds the minute rollup for an upload.
type RollupBuilder interface {
	RebuildMinuteRollup(ctx context.Context, uploadID string) (int64, error)
}

// Runner executes ingest jobs against injected storage. One Runner serves
// the whole process; each Run call is independent.
type Runner struct {
	writer  EventWriter
	jobs    JobSink
	summary Summarizer
	rollup  RollupBuilder
	cfg     config.IngestConfig
}

// NewRunner wires a Runner to its storage collaborators.
func NewRunner(writer EventWriter, jobs JobSink, summary Summarizer, rollup RollupBuilder, cfg config.IngestConfig) *Runner {
	return &Runner{
		writer:  writer,
		jobs:    jobs,
		summary: summary,
		rollup:  rollup,
		cfg:     cfg,
	}
}

// Result is the outcome of one completed ingest run.
type Result struct {
	Inserted   int64
	BadLines   int64
	RollupRows int64
}

// Run streams the staged file for an upload, normalizing and batch-inserting
// its lines, then rebuilds the upload's feature summary and minute rollup.
// Job progress is written after every batch flush so pollers observe
// incremental counts. Malformed lines are skipped and counted; only storage
// and file I/O errors terminate the run, leaving the job failed with the
// causal error recorded.
func (r *Runner) Run(ctx context.Context, jobID, uploadID, path string) (*Result, error) {
	log := logging.With().
		Str("job_id", jobID).
		Str("upload_id", uploadID).
		Str("path", path).
		Logger()

	if err := r.jobs.UpdateIngestJob(ctx, jobID, models.JobRunning, 0, 0, nil); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	res, err := r.stream(ctx, jobID, uploadID, path, &log)
	if err != nil {
		r.fail(ctx, jobID, res, err, &log)
		return nil, err
	}

	if _, err := r.summary.ComputeUploadFeatures(ctx, uploadID, r.cfg.TopN); err != nil {
		err = fmt.Errorf("compute features: %w", err)
		r.fail(ctx, jobID, res, err, &log)
		return nil, err
	}

	rollupRows, err := r.rollup.RebuildMinuteRollup(ctx, uploadID)
	if err != nil {
		err = fmt.Errorf("rebuild rollup: %w", err)
		r.fail(ctx, jobID, res, err, &log)
		return nil, err
	}
	res.RollupRows = rollupRows

	if err := r.jobs.UpdateIngestJob(ctx, jobID, models.JobDone, res.Inserted, res.BadLines, nil); err != nil {
		return nil, fmt.Errorf("mark job done: %w", err)
	}

	metrics.IngestRuns.WithLabelValues("done").Inc()
	log.Info().
		Int64("inserted", res.Inserted).
		Int64("bad_lines", res.BadLines).
		Int64("rollup_rows", rollupRows).
		Msg("ingest run complete")
	return res, nil
}

func (r *Runner) stream(ctx context.Context, jobID, uploadID, path string, log *zerolog.Logger) (*Result, error) {
	res := &Result{}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("open staged file: %w", err)
	}
	defer func() { _ = f.Close() }()

	maxLine := r.cfg.MaxLineBytes
	if maxLine <= 0 {
		maxLine = 1 << 20
	}
	reader := bufio.NewReaderSize(f, maxLine)

	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	batch := make([]*models.Event, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		start := time.Now()
		if err := r.writer.InsertEventBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		metrics.BatchFlushDuration.Observe(time.Since(start).Seconds())
		metrics.EventsInserted.Add(float64(len(batch)))
		res.Inserted += int64(len(batch))
		batch = batch[:0]
		return r.jobs.UpdateIngestJob(ctx, jobID, models.JobRunning, res.Inserted, res.BadLines, nil)
	}

	lineNo := 0
	eof := false
	for !eof {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		line, err := reader.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			// A line longer than the read buffer is one bad line; the rest
			// of it is consumed up to the next newline and the run goes on.
			lineNo++
			res.BadLines++
			metrics.BadLines.Inc()
			log.Debug().Int("line", lineNo).Int("max_bytes", maxLine).Msg("skipping oversized line")
			serr := skipToNewline(reader)
			if serr != nil && !errors.Is(serr, io.EOF) {
				return res, fmt.Errorf("read staged file: %w", serr)
			}
			eof = errors.Is(serr, io.EOF)
			continue
		case errors.Is(err, io.EOF):
			eof = true
		case err != nil:
			return res, fmt.Errorf("read staged file: %w", err)
		}

		line = trimSpace(line)
		if len(line) == 0 {
			continue
		}
		lineNo++

		ev, nerr := Normalize(uploadID, line)
		if nerr != nil {
			res.BadLines++
			metrics.BadLines.Inc()
			log.Debug().Int("line", lineNo).Err(nerr).Msg("skipping malformed line")
			continue
		}

		// The reader reuses its buffer; Raw must own its bytes before the
		// event outlives this iteration.
		ev.Raw = append([]byte(nil), ev.Raw...)
		batch = append(batch, ev)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// skipToNewline discards the remainder of an oversized line. Returns io.EOF
// when the input ends before another newline.
func skipToNewline(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

func (r *Runner) fail(ctx context.Context, jobID string, res *Result, cause error, log *zerolog.Logger) {
	metrics.IngestRuns.WithLabelValues("failed").Inc()
	msg := cause.Error()
	var inserted, bad int64
	if res != nil {
		inserted, bad = res.Inserted, res.BadLines
	}
	if err := r.jobs.UpdateIngestJob(ctx, jobID, models.JobFailed, inserted, bad, &msg); err != nil {
		log.Error().Err(err).Msg("failed to record terminal job state")
	}
	log.Error().Err(cause).Msg("ingest run failed")
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
