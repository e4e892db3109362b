// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package api exposes the workbench over HTTP: registering staged log
// files, triggering ingest and detection runs, and reading back jobs,
// features, findings, events, and rollups. Long-running work is enqueued on
// the background pool and the trigger endpoints return 202 immediately;
// pollers follow job state.
package api
