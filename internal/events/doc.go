// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

// Package events is the in-process feedback bus: the API publishes accepted
// interaction events, a single supervised consumer applies them to the
// store and triggers profile recomputation. Event IDs double as watermill
// message UUIDs, preserving the idempotency key end to end.
package events
