// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package config

import "fmt"

// Validate checks the configuration for values that would misbehave at
// runtime. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.StatementTimeout <= 0 {
		return fmt.Errorf("database.statement_timeout must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	if c.API.DefaultEventLimit <= 0 {
		return fmt.Errorf("api.default_event_limit must be positive")
	}
	if c.API.MaxEventLimit < c.API.DefaultEventLimit {
		return fmt.Errorf("api.max_event_limit (%d) must be >= api.default_event_limit (%d)",
			c.API.MaxEventLimit, c.API.DefaultEventLimit)
	}

	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	if c.Ingest.MaxLineBytes <= 0 {
		return fmt.Errorf("ingest.max_line_bytes must be positive")
	}
	if c.Ingest.TopN <= 0 {
		return fmt.Errorf("ingest.top_n must be positive")
	}

	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}

	return nil
}
