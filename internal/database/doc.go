// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package database provides the DuckDB-backed persistence layer: the events
// table, the minute rollup table, upload feature documents, and ingest job
// records, together with the two consumer query shapes external layers rely
// on (raw-event point lookups and minute-bucket rollup lookups).
//
// DuckDB is embedded, so there is no remote server to manage; one DB handle
// is constructed at startup and injected into every component that needs
// storage. All write paths that must be atomic (rollup rebuild in
// particular) run inside a single transaction.
package database
