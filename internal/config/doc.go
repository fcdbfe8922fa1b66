// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

// Package config assembles the service configuration with koanf:
// struct defaults, an optional YAML file, and MELODEX_-prefixed environment
// variables, in increasing precedence. Validation runs at load time so bad
// configuration is a startup failure, never a per-request surprise.
package config
