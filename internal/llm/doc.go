// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

// Package llm upgrades deterministic profile summaries to natural language
// through an OpenAI-compatible chat endpoint. It is strictly optional: with
// no API key the service never constructs a Summarizer, and any runtime
// failure falls back to the deterministic text.
package llm
