// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/melodex/config.yaml",
	"/etc/melodex/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces the service's environment variables.
const envPrefix = "MELODEX_"

// Load builds the configuration in three layers with clear precedence:
// struct defaults, then an optional YAML file, then MELODEX_-prefixed
// environment variables. The result is validated before being returned, so
// a misconfigured service fails at startup rather than per-request.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// deepPaths maps env keys that would otherwise be ambiguous (more than one
// nesting level) onto their koanf paths.
var deepPaths = map[string]string{
	"engine_weights_semantic":    "engine.weights.semantic",
	"engine_weights_audio":       "engine.weights.audio",
	"engine_weights_preference":  "engine.weights.preference",
	"engine_weights_time_of_day": "engine.weights.time_of_day",
}

// envTransform maps MELODEX_SECTION_FIELD_NAME to section.field_name:
// MELODEX_SERVER_PORT -> server.port,
// MELODEX_ENGINE_UPDATE_THRESHOLD -> engine.update_threshold.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if path, ok := deepPaths[key]; ok {
		return path
	}
	return strings.Replace(key, "_", ".", 1)
}
