// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

/*
Package reranker is the circuit-broken client for the external rerank
service (a Cohere-style cross-encoder API).

Failures propagate to the pipeline, which degrades to its own score order;
the breaker exists so a struggling upstream stops being called while every
request would degrade anyway.
*/
package reranker
