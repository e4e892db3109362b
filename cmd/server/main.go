// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/api"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/database"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/detect"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/ingest"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/jobs"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("database close")
		}
	}()

	store := detect.NewDuckDBStore(db.Conn())
	battery := detect.NewDefaultBattery(store, store)
	runner := ingest.NewRunner(db, db, db, db, cfg.Ingest)
	pool := jobs.NewPool(cfg.Jobs)
	server := api.NewServer(db, store, battery, runner, pool, cfg.API)

	supHandler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("workbench", suture.Spec{
		EventHook: supHandler.MustHook(),
	})
	root.Add(pool)
	root.Add(&api.HTTPService{Server: server, Cfg: cfg.Server})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("port", cfg.Server.Port).
		Msg("workbench starting")

	if err := root.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("supervisor exited")
	}
	logging.Info().Msg("workbench stopped")
}
