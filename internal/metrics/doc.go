// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

/*
Package metrics defines the Prometheus instrumentation for the service.

All collectors are package-level promauto variables registered against the
default registry and exposed via the /metrics endpoint. Recording helpers
exist for the call sites that would otherwise repeat label plumbing.
*/
package metrics
