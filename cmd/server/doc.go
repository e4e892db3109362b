// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package main is the entry point for the workbench server. It loads
// configuration, opens the DuckDB database, wires the ingest runner, the
// detection battery, the background job pool, and the HTTP API, and runs
// everything under a single supervision tree until SIGINT or SIGTERM.
package main
