// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package reranker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/melodex/internal/metrics"
	"github.com/tomtom215/melodex/internal/recommend"
)

// ErrUnavailable wraps reranker transport failures and open-breaker
// rejections. The pipeline treats both identically: degrade to the
// pre-ranked order.
var ErrUnavailable = errors.New("reranker unavailable")

// Config holds the rerank collaborator settings.
type Config struct {
	// BaseURL is the rerank service root.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates toward the service; sent as a bearer token.
	APIKey string `koanf:"api_key"`

	// Model names the rerank model.
	Model string `koanf:"model"`

	// Timeout bounds one rerank call.
	Timeout time.Duration `koanf:"timeout"`

	// Breaker settings: ConsecutiveFailures trips the circuit open,
	// OpenTimeout is how long it stays open before probing.
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Model:               "rerank-english-v3.0",
		Timeout:             5 * time.Second,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// Client calls an external cross-encoder rerank service behind a circuit
// breaker. A run of failures opens the circuit so a struggling upstream is
// not hammered while every request degrades anyway.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]recommend.RerankResult]
	logger  zerolog.Logger
}

// NewClient builds a rerank client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultConfig().ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultConfig().OpenTimeout
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}

	log := logger.With().Str("component", "reranker").Logger()

	settings := gobreaker.Settings{
		Name:        "reranker",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Reranker circuit breaker state change")
		},
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]recommend.RerankResult](settings),
		logger:  log,
	}
}

// rerankRequest is the Cohere-style wire request.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []recommend.RerankResult `json:"results"`
}

// Rerank submits documents for reranking and returns index/score pairs in
// relevance order. Errors (including an open circuit) are returned to the
// caller, which falls back to its own ordering.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]recommend.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN > len(documents) {
		topN = len(documents)
	}

	start := time.Now()
	results, err := c.breaker.Execute(func() ([]recommend.RerankResult, error) {
		return c.call(ctx, rerankRequest{
			Model:     c.cfg.Model,
			Query:     query,
			Documents: documents,
			TopN:      topN,
		})
	})
	metrics.RerankDuration.Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) call(ctx context.Context, rr rerankRequest) ([]recommend.RerankResult, error) {
	body, err := json.Marshal(rr)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return out.Results, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
