// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/melodex/internal/api"
	"github.com/tomtom215/melodex/internal/config"
	"github.com/tomtom215/melodex/internal/events"
	"github.com/tomtom215/melodex/internal/llm"
	"github.com/tomtom215/melodex/internal/logging"
	"github.com/tomtom215/melodex/internal/profilestore"
	"github.com/tomtom215/melodex/internal/recommend"
	"github.com/tomtom215/melodex/internal/reranker"
	"github.com/tomtom215/melodex/internal/retrieval"
	"github.com/tomtom215/melodex/internal/supervisor"
	"github.com/tomtom215/melodex/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger := logging.Logger()

	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("store_in_memory", cfg.Store.InMemory).
		Bool("reranker_enabled", cfg.Reranker.BaseURL != "").
		Bool("llm_enabled", cfg.LLM.APIKey != "").
		Msg("Starting melodex")

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close store")
		}
	}()

	retriever := retrieval.NewClient(cfg.Retrieval, logger)

	// Optional collaborators stay nil interfaces when unconfigured so the
	// service takes its degraded paths instead of calling dead endpoints.
	var rerank recommend.Reranker
	if cfg.Reranker.BaseURL != "" {
		rerank = reranker.NewClient(cfg.Reranker, logger)
	}
	var summarizer recommend.Summarizer
	if s := llm.NewSummarizer(cfg.LLM, logger); s != nil {
		summarizer = s
	}

	bus := events.NewBus(cfg.Events.BufferSize, logger)
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close event bus")
		}
	}()

	svc := recommend.NewService(cfg.Engine, store, retriever, rerank, summarizer, bus, logger)
	consumer := events.NewConsumer(bus, svc, logger)

	handlers := api.NewHandlers(svc, func() bool { return true }, logger)
	router := api.NewRouter(handlers, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), treeCfg)
	tree.AddFeedbackService(services.NewConsumerService("interaction-consumer", consumer))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervision tree: %w", err)
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

func openStore(cfg *config.Config) (*profilestore.Store, error) {
	if cfg.Store.InMemory {
		return profilestore.OpenInMemory()
	}
	return profilestore.Open(cfg.Store.Path)
}
