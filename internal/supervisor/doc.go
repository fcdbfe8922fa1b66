// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

// Package supervisor builds the suture supervision tree for the service.
//
// The tree has a root supervisor with two child layers: the feedback layer
// (interaction consumer) and the API layer (HTTP server). Each layer
// restarts its services independently so a crashing consumer cannot take
// down the HTTP surface and vice versa.
package supervisor
