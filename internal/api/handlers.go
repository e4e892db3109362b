// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/database"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/jobs"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createUploadRequest struct {
	Filename   string `json:"filename"`
	StoredPath string `json:"stored_path"`
}

type createUploadResponse struct {
	*models.Upload
	IngestJobID  string `json:"ingest_job_id"`
	IngestStatus string `json:"ingest_status"`
}

// handleCreateUpload registers a server-local staged JSONL file and starts
// its ingestion right away. File transfer itself is out of scope; callers
// stage the file and hand over its path.
func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	var req createUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StoredPath == "" {
		writeError(w, http.StatusBadRequest, "stored_path is required")
		return
	}
	info, err := os.Stat(req.StoredPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "stored_path is not a readable file")
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.StoredPath)
	}

	up, err := s.db.CreateUpload(r.Context(), filename, req.StoredPath, info.Size())
	if err != nil {
		logging.Error().Err(err).Msg("create upload")
		writeError(w, http.StatusInternalServerError, "failed to register upload")
		return
	}

	job, errMsg := s.enqueueIngest(r.Context(), up.ID, up.StoredPath)
	if errMsg != "" {
		writeError(w, http.StatusServiceUnavailable, errMsg)
		return
	}
	writeJSON(w, http.StatusCreated, createUploadResponse{
		Upload:       up,
		IngestJobID:  job.ID,
		IngestStatus: string(models.JobQueued),
	})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	uploads, err := s.db.ListUploads(r.Context(), limit)
	if err != nil {
		logging.Error().Err(err).Msg("list uploads")
		writeError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []*models.Upload{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.db.GetUpload(r.Context(), chi.URLParam(r, "uploadID"))
	if errors.Is(err, database.ErrUploadNotFound) {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load upload")
		return
	}
	writeJSON(w, http.StatusOK, up)
}

// handleStartIngest creates an ingest job for the upload and queues the run.
// The response returns immediately; the job record carries progress.
func (s *Server) handleStartIngest(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	up, err := s.db.GetUpload(r.Context(), uploadID)
	if errors.Is(err, database.ErrUploadNotFound) {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load upload")
		return
	}

	job, errMsg := s.enqueueIngest(r.Context(), uploadID, up.StoredPath)
	if errMsg != "" {
		writeError(w, http.StatusServiceUnavailable, errMsg)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.ID,
		"upload_id": uploadID,
		"status":    string(models.JobQueued),
	})
}

// enqueueIngest creates the queued job record first so the closure only
// captures ids, then hands the run to the pool. On enqueue failure the job is
// marked failed rather than left dangling in queued.
func (s *Server) enqueueIngest(ctx context.Context, uploadID, storedPath string) (*models.IngestJob, string) {
	job, err := s.db.CreateIngestJob(ctx, uploadID)
	if err != nil {
		logging.Error().Err(err).Msg("create ingest job")
		return nil, "failed to create job"
	}

	jobID := job.ID
	err = s.pool.Enqueue("ingest", func(runCtx context.Context) {
		_, _ = s.runner.Run(runCtx, jobID, uploadID, storedPath)
	})
	if err != nil {
		msg := "job queue full"
		if errors.Is(err, jobs.ErrPoolClosed) {
			msg = "service shutting down"
		}
		_ = s.db.UpdateIngestJob(ctx, jobID, models.JobFailed, 0, 0, &msg)
		return nil, msg
	}
	return job, ""
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.db.GetIngestJob(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, database.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	feats, err := s.db.GetUploadFeatures(r.Context(), chi.URLParam(r, "uploadID"))
	if errors.Is(err, database.ErrFeaturesNotFound) {
		writeError(w, http.StatusNotFound, "features not computed for this upload")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load features")
		return
	}
	writeJSON(w, http.StatusOK, feats)
}

// handleStartDetect queues a detection run over the upload's rollup.
func (s *Server) handleStartDetect(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	err := s.pool.Enqueue("detect", func(ctx context.Context) {
		if _, err := s.battery.Run(ctx, uploadID); err != nil {
			logging.Error().Err(err).Str("upload_id", uploadID).Msg("detection run failed")
		}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "job queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"upload_id": uploadID,
		"status":    "queued",
	})
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	findings, err := s.findings.ListFindings(r.Context(), chi.URLParam(r, "uploadID"), limit)
	if err != nil {
		logging.Error().Err(err).Msg("list findings")
		writeError(w, http.StatusInternalServerError, "failed to list findings")
		return
	}
	if findings == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, findings)
}

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.EventFilter{
		UploadID:       chi.URLParam(r, "uploadID"),
		UserEmail:      q.Get("user_email"),
		ClientIP:       q.Get("client_ip"),
		DestHost:       q.Get("dest_host"),
		ThreatCategory: q.Get("threat_category"),
		Action:         q.Get("action"),
	}

	var bad string
	filter.Since, bad = parseTimeParam(q.Get("since"), bad, "since")
	filter.Until, bad = parseTimeParam(q.Get("until"), bad, "until")
	if bad != "" {
		writeError(w, http.StatusBadRequest, bad)
		return
	}

	filter.Limit = s.clampLimit(q.Get("limit"))

	events, err := s.db.QueryEvents(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("query events")
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleQueryRollup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.RollupFilter{
		UploadID:       chi.URLParam(r, "uploadID"),
		GroupBy:        q.Get("group_by"),
		UserEmail:      q.Get("user_email"),
		ClientIP:       q.Get("client_ip"),
		DestHost:       q.Get("dest_host"),
		ThreatCategory: q.Get("threat_category"),
		Action:         q.Get("action"),
	}
	if filter.GroupBy != "" && !database.ValidRollupGroupBy(filter.GroupBy) {
		writeError(w, http.StatusBadRequest,
			"group_by must be one of client_ip, user_email, dest_host, threat_category")
		return
	}
	if v := q.Get("min_total"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "min_total must be a non-negative integer")
			return
		}
		filter.MinTotal = n
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	var bad string
	filter.Since, bad = parseTimeParam(q.Get("since"), bad, "since")
	filter.Until, bad = parseTimeParam(q.Get("until"), bad, "until")
	if bad != "" {
		writeError(w, http.StatusBadRequest, bad)
		return
	}

	rows, err := s.db.QueryRollup(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("query rollup")
		writeError(w, http.StatusInternalServerError, "failed to query rollup")
		return
	}
	if rows == nil {
		rows = []*models.RollupBucket{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) clampLimit(raw string) int {
	limit := s.cfg.DefaultEventLimit
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > s.cfg.MaxEventLimit {
		limit = s.cfg.MaxEventLimit
	}
	return limit
}

func parseTimeParam(raw, existingErr, name string) (*time.Time, string) {
	if existingErr != "" || raw == "" {
		return nil, existingErr
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, name + " must be RFC3339"
	}
	t = t.UTC()
	return &t, ""
}
