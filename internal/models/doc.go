// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package models defines the data structures shared across the workbench:
// canonical events, minute rollup rows, upload feature summaries, and ingest
// job records. Every entity is scoped to exactly one upload; nothing in this
// package crosses upload boundaries.
package models
