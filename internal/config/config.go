// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/melodex/internal/llm"
	"github.com/tomtom215/melodex/internal/recommend"
	"github.com/tomtom215/melodex/internal/reranker"
	"github.com/tomtom215/melodex/internal/retrieval"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   LoggingConfig    `koanf:"logging"`
	Store     StoreConfig      `koanf:"store"`
	Engine    recommend.Config `koanf:"engine"`
	Retrieval retrieval.Config `koanf:"retrieval"`
	Reranker  reranker.Config  `koanf:"reranker"`
	LLM       llm.Config       `koanf:"llm"`
	Events    EventsConfig     `koanf:"events"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is requests per minute per client IP on the API routes.
	RateLimit int `koanf:"rate_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// StoreConfig holds the BadgerDB settings.
type StoreConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs the store without persistence.
	InMemory bool `koanf:"in_memory"`
}

// EventsConfig holds the feedback bus settings.
type EventsConfig struct {
	// BufferSize bounds queued interaction events.
	BufferSize int64 `koanf:"buffer_size"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path: "./data/melodex",
		},
		Engine:    recommend.DefaultConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Reranker:  reranker.DefaultConfig(),
		LLM:       llm.DefaultConfig(),
		Events: EventsConfig{
			BufferSize: 1024,
		},
	}
}

// Validate fails fast on configuration a running service could not honor.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be positive, got %d", c.Server.RateLimit)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	if c.Retrieval.BaseURL == "" {
		return fmt.Errorf("retrieval.base_url is required")
	}
	if c.Events.BufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be positive, got %d", c.Events.BufferSize)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
