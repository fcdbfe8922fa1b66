// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package retrieval

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
	"golang.org/x/time/rate"

	"github.com/tomtom215/melodex/internal/metrics"
	"github.com/tomtom215/melodex/internal/recommend"
)

// ErrUnavailable wraps transport-level retrieval failures so callers can
// distinguish collaborator outage from bad requests.
var ErrUnavailable = errors.New("retrieval service unavailable")

// Config holds the retrieval collaborator settings.
type Config struct {
	// BaseURL is the search service root, e.g. "http://localhost:6333".
	BaseURL string `koanf:"base_url"`

	// Timeout bounds one search call.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the sustained requests-per-second budget toward the
	// search service; Burst the momentary allowance.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		RateLimit: 20,
		Burst:     5,
	}
}

// Client talks to the external vector search service. The service is a black
// box: text query in, scored candidates out. Calls are paced by a local rate
// limiter so a burst of recommendation traffic cannot saturate the upstream.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient builds a retrieval client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultConfig().RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logger.With().Str("component", "retrieval").Logger(),
	}
}

// searchRequest is the wire request to the search service.
type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Genre string `json:"genre,omitempty"`
}

// wireFeatures uses pointers so absent fields are distinguishable from
// explicit zeros; defaults are applied at this boundary and nowhere else.
type wireFeatures struct {
	Energy           *float64 `json:"energy"`
	Valence          *float64 `json:"valence"`
	Danceability     *float64 `json:"danceability"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Speechiness      *float64 `json:"speechiness"`
	Liveness         *float64 `json:"liveness"`
	Tempo            *float64 `json:"tempo"`
	Loudness         *float64 `json:"loudness"`
	Key              *int     `json:"key"`
	Mode             *int     `json:"mode"`
	TimeSignature    *int     `json:"time_signature"`
}

// wireResult's Score is a pointer for the same reason wireFeatures uses them:
// an absent score means "unscored", which defaults to neutral 0.5, not 0.
type wireResult struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Artist        string       `json:"artist"`
	Genre         string       `json:"genre"`
	Score         *float64     `json:"score"`
	Features      wireFeatures `json:"features"`
	LyricsExcerpt string       `json:"lyrics_excerpt,omitempty"`
}

type searchResponse struct {
	Results []wireResult `json:"results"`
}

// Search returns scored candidates for a free-text query. Missing feature
// fields are filled with documented defaults and scores clamped to [0, 1],
// so downstream stages never see nulls or out-of-range values.
func (c *Client) Search(ctx context.Context, query string, limit int, genreFilter string) ([]recommend.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	start := time.Now()
	results, err := c.search(ctx, searchRequest{Query: query, Limit: limit, Genre: genreFilter})
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	candidates := make([]recommend.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, recommend.Candidate{
			Track: recommend.Track{
				ID:            r.ID,
				Title:         r.Title,
				Artist:        r.Artist,
				Genre:         r.Genre,
				Features:      r.Features.toFeatures(),
				LyricsExcerpt: r.LyricsExcerpt,
			},
			Score: semanticScore(r.Score),
		})
	}

	c.logger.Debug().
		Int("candidates", len(candidates)).
		Str("genre_filter", genreFilter).
		Msg("Retrieved candidates")
	return candidates, nil
}

func (c *Client) search(ctx context.Context, sr searchRequest) ([]wireResult, error) {
	body, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}

// toFeatures fills absent fields with the documented defaults and clamps
// unit-interval features into range.
func (w wireFeatures) toFeatures() recommend.AudioFeatures {
	f := recommend.DefaultAudioFeatures()

	setUnit := func(dst *float64, src *float64) {
		if src != nil {
			*dst = clamp01(*src)
		}
	}
	setUnit(&f.Energy, w.Energy)
	setUnit(&f.Valence, w.Valence)
	setUnit(&f.Danceability, w.Danceability)
	setUnit(&f.Acousticness, w.Acousticness)
	setUnit(&f.Instrumentalness, w.Instrumentalness)
	setUnit(&f.Speechiness, w.Speechiness)
	setUnit(&f.Liveness, w.Liveness)

	if w.Tempo != nil && *w.Tempo > 0 {
		f.Tempo = *w.Tempo
	}
	if w.Loudness != nil {
		f.Loudness = *w.Loudness
	}
	if w.Key != nil && *w.Key >= 0 && *w.Key <= 11 {
		f.Key = *w.Key
	}
	if w.Mode != nil && (*w.Mode == 0 || *w.Mode == 1) {
		f.Mode = *w.Mode
	}
	if w.TimeSignature != nil && *w.TimeSignature > 0 {
		f.TimeSignature = *w.TimeSignature
	}
	return f
}

// semanticScore defaults an absent retrieval score to the neutral 0.5 and
// clamps present ones into the unit interval.
func semanticScore(v *float64) float64 {
	if v == nil {
		return 0.5
	}
	return clamp01(*v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
