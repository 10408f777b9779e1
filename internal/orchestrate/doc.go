// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package orchestrate implements the recommendation source orchestration and
// aggregation layer: experiment variant assignment, ML-versus-SQL source
// routing with a single silent fallback, bounded-concurrency fan-out over
// entity groups, and request epoch tagging for stale-result suppression.
//
// The package has no dependencies on other internal packages besides
// logging and metrics. Upstream access is abstracted behind the Fetcher
// interface so the backend client package can be wired in without creating
// circular imports.
package orchestrate
