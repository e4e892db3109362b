// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, 20, cfg.Ingest.TopN)
	assert.Equal(t, 200, cfg.API.DefaultEventLimit)
	assert.Equal(t, 500, cfg.API.MaxEventLimit)
	assert.Positive(t, cfg.Server.Port)
	assert.Positive(t, cfg.Jobs.Workers)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DUCKDB_PATH", "/tmp/override.duckdb")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("INGEST_BATCH_SIZE", "250")
	t.Setenv("LOG_LEVEL", "debug")
	// Unmapped variables must not leak into the config tree.
	t.Setenv("DATABASE_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.duckdb", cfg.Database.Path)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9200
ingest:
  top_n: 50
`), 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Ingest.TopN)
	// Unset keys keep their defaults.
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9200\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }, "ingest.batch_size"},
		{"max below default limit", func(c *Config) { c.API.MaxEventLimit = 10 }, "api.max_event_limit"},
		{"no workers", func(c *Config) { c.Jobs.Workers = 0 }, "jobs.workers"},
		{"zero statement timeout", func(c *Config) { c.Database.StatementTimeout = 0 }, "statement_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStatementTimeoutDefault(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 60*time.Second, cfg.Database.StatementTimeout)
}
