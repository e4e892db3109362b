// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/database"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/detect"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/ingest"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/jobs"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
)

// Server wires HTTP handlers to the storage, ingest, and detection layers.
type Server struct {
	db       *database.DB
	findings detect.FindingStore
	battery  *detect.Battery
	runner   *ingest.Runner
	pool     *jobs.Pool
	cfg      config.APIConfig
}

// NewServer assembles the API surface from its collaborators.
func NewServer(db *database.DB, findings detect.FindingStore, battery *detect.Battery, runner *ingest.Runner, pool *jobs.Pool, cfg config.APIConfig) *Server {
	return &Server{
		db:       db,
		findings: findings,
		battery:  battery,
		runner:   runner,
		pool:     pool,
		cfg:      cfg,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router(serverCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if serverCfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(serverCfg.RateLimitReqs, serverCfg.RateLimitWindow))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/uploads", s.handleCreateUpload)
		r.Get("/uploads", s.handleListUploads)
		r.Get("/uploads/{uploadID}", s.handleGetUpload)

		r.Post("/ingest/{uploadID}", s.handleStartIngest)
		r.Get("/ingest/jobs/{jobID}", s.handleGetJob)

		r.Get("/features/{uploadID}", s.handleGetFeatures)

		r.Post("/detect/{uploadID}", s.handleStartDetect)
		r.Get("/findings/{uploadID}", s.handleListFindings)

		r.Get("/events/{uploadID}", s.handleQueryEvents)
		r.Get("/rollup/{uploadID}", s.handleQueryRollup)
	})

	return r
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts
// down gracefully. It implements suture.Service.
func (s *Server) ListenAndServe(ctx context.Context, serverCfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port),
		Handler:           s.Router(serverCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       serverCfg.Timeout,
		WriteTimeout:      serverCfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// HTTPService adapts the server plus its config into a suture.Service.
type HTTPService struct {
	Server *Server
	Cfg    config.ServerConfig
}

func (h *HTTPService) Serve(ctx context.Context) error {
	return h.Server.ListenAndServe(ctx, h.Cfg)
}

func (h *HTTPService) String() string { return "api.HTTPService" }
