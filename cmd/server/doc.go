// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

// Package main is the entry point for the Melodex server.
//
// Melodex serves personalized music recommendations: candidates come from an
// external retrieval service, get scored against the user's taste profile,
// optionally reranked by a cross-encoder, and evaluated for quality before
// being returned. User feedback flows through an in-process event bus and
// periodically triggers a wholesale profile recompute.
//
// # Startup Order
//
//  1. Configuration: defaults, then config file, then MELODEX_* environment
//     variables (Koanf v2)
//  2. BadgerDB profile store (on disk, or in memory for development)
//  3. Retrieval, reranker, and LLM summarizer clients (the latter two are
//     optional and left unset when unconfigured)
//  4. Event bus and interaction consumer
//  5. HTTP API (chi router) under a suture supervision tree
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervision tree context. The HTTP server
// drains in-flight requests within server.shutdown_timeout, the consumer
// stops, and the store and bus are closed.
package main
