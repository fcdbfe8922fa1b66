// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

/*
Package recommend implements the core recommendation engine: candidate
scoring against listener profiles, time-of-day adjustment, external
reranking with graceful degradation, quality evaluation, and feedback-driven
profile recomputation.

# Pipeline

A request flows through fixed stages:

 1. Retrieval: the Retriever collaborator returns scored candidates for the
    free-text query (vector search, treated as a black box).
 2. Collaborative scoring: each candidate's retrieval score is blended with
    a profile-match score and the profile's genre weight.
 3. Time-of-day adjustment (optional): scores are pulled toward the current
    period's ideal energy and valence.
 4. Prerank truncation: candidates are sorted by score and cut to the
    shortlist size.
 5. Reranking (optional): the shortlist is rendered as prose documents and
    submitted to the external Reranker. On failure the pre-ranked order is
    served and the response still succeeds.
 6. Evaluation: the finished list gets an advisory quality report.

# Profiles

Profiles are recomputed wholesale from the append-only interaction history
every UpdateThreshold events. BuildProfile is a pure function, so redundant
concurrent recomputation converges on identical snapshots.
*/
package recommend
