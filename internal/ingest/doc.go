// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package ingest turns staged JSONL proxy log exports into normalized event
// rows. Files are streamed line by line so memory stays flat regardless of
// file size; malformed lines are counted and skipped, never fatal. After a
// successful run the upload's feature summary and minute rollup are rebuilt
// so the upload is immediately ready for detection.
package ingest
