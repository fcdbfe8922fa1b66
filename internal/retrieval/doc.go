// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

/*
Package retrieval is the client for the external vector search service.

The service is a semantic black box: a free-text query goes in, scored
candidates come out. This package owns the data boundary: missing audio
feature fields get documented defaults, scores are clamped to [0, 1], and
calls are paced by a local token-bucket limiter.
*/
package retrieval
