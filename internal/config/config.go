// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package config loads and validates workbench configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import "time"

// Config is the root configuration for the workbench.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`

	// PreserveInsertionOrder mirrors the DuckDB pragma. Disabling it reduces
	// memory usage on large aggregations but may change result order of
	// unordered queries.
	PreserveInsertionOrder bool `koanf:"preserve_insertion_order"`

	// StatementTimeout bounds individual aggregation queries.
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs/RateLimitWindow configure per-client request limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// APIConfig bounds consumer query shapes.
type APIConfig struct {
	// DefaultEventLimit applies when a raw-event query names no limit.
	DefaultEventLimit int `koanf:"default_event_limit"`

	// MaxEventLimit is the hard cap on raw-event query limits.
	MaxEventLimit int `koanf:"max_event_limit"`
}

// IngestConfig configures the streaming event writer.
type IngestConfig struct {
	// UploadDir is where staged JSONL exports live.
	UploadDir string `koanf:"upload_dir"`

	// BatchSize is the number of normalized events per bulk insert.
	BatchSize int `koanf:"batch_size"`

	// MaxLineBytes bounds a single input line. A longer line is counted as
	// one bad line and skipped; exports with multi-megabyte lines are corrupt.
	MaxLineBytes int `koanf:"max_line_bytes"`

	// TopN is the list size for upload feature summaries.
	TopN int `koanf:"top_n"`
}

// JobsConfig configures the background worker pool.
type JobsConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// LoggingConfig configures the zerolog sink.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                   "/data/workbench.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
			StatementTimeout:       60 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8472,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		API: APIConfig{
			DefaultEventLimit: 200,
			MaxEventLimit:     500,
		},
		Ingest: IngestConfig{
			UploadDir:    "/data/uploads",
			BatchSize:    1000,
			MaxLineBytes: 1 << 20, // 1MB per line
			TopN:         20,
		},
		Jobs: JobsConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
