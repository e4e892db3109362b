// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package detect implements the threat pattern battery that runs over an
// upload's minute rollup. Each detector aggregates rollup rows by a grouping
// key, keeps groups past a minimum evidence threshold, and emits one
// candidate finding per surviving group.
//
// Every finding carries a typed evidence payload that is self-contained for
// triage: the entities involved, the numeric signal that tripped the
// detector, and a parameterized verification query an analyst can re-run
// against raw events. Confidence is a pure function of severity and
// evidence, so identical runs over identical data score identically.
//
// Findings are append-only. Re-running the battery over the same upload
// appends a fresh set; readers sort newest-first.
package detect
