// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

// Package services contains adapters that wrap blocking workers (the HTTP
// server, the interaction consumer) as suture services with graceful
// shutdown semantics.
package services
