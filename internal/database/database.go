// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
)

// DB wraps the DuckDB connection and carries the statement timeout applied
// to queries whose caller context has no deadline of its own.
type DB struct {
	conn             *sql.DB
	path             string
	statementTimeout time.Duration
}

// New opens (creating if necessary) the DuckDB database at the configured
// path, applies the configured resource pragmas through the connection
// string, and ensures the schema exists.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	if cfg.Path != ":memory:" && cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	connStr := buildConnString(cfg)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", cfg.Path, err)
	}

	// DuckDB is embedded and single-process. A small pool is enough; the
	// driver serializes writes internally.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	db := &DB{
		conn:             conn,
		path:             cfg.Path,
		statementTimeout: cfg.StatementTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	if err := db.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Str("max_memory", cfg.MaxMemory).
		Int("threads", cfg.Threads).
		Msg("DuckDB database ready")

	return db, nil
}

func buildConnString(cfg *config.DatabaseConfig) string {
	preserve := "false"
	if cfg.PreserveInsertionOrder {
		preserve = "true"
	}
	return fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s",
		cfg.Path, cfg.Threads, cfg.MaxMemory, preserve)
}

// Conn exposes the underlying handle for callers that need raw access,
// such as verification queries surfaced in finding evidence.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close releases the database handle. DuckDB flushes on close, so this must
// run before process exit to avoid WAL replay on the next start.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureTimeout(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// ensureTimeout applies the configured statement timeout when the caller
// context carries no deadline. Contexts with deadlines pass through.
func (db *DB) ensureTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if db.statementTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.statementTimeout)
}
