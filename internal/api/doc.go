// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

/*
Package api is the chi-based HTTP surface.

Endpoints:

	POST /api/v1/recommendations         serve a ranked recommendation list
	POST /api/v1/feedback                accept one interaction event (202)
	GET  /api/v1/users/{userID}/profile  profile snapshot + summary
	GET  /api/v1/users/{userID}/history  served recommendation history
	GET  /api/v1/health/live|ready       probes
	GET  /metrics                        Prometheus metrics

Malformed input is rejected with a 400 before any pipeline stage runs;
collaborator degradation never surfaces as an error status.
*/
package api
