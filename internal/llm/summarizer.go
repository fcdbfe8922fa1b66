// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/tomtom215/melodex/internal/recommend"
)

// ErrEmptyCompletion is returned when the model produced no usable text.
var ErrEmptyCompletion = errors.New("llm returned empty completion")

// Config holds the summarizer settings.
type Config struct {
	// APIKey authenticates toward the OpenAI-compatible endpoint. Empty
	// disables the summarizer entirely.
	APIKey string `koanf:"api_key"`

	// BaseURL overrides the endpoint for OpenAI-compatible gateways.
	BaseURL string `koanf:"base_url"`

	// Model names the chat model.
	Model string `koanf:"model"`

	// Timeout bounds one summarization call.
	Timeout time.Duration `koanf:"timeout"`

	Temperature float32 `koanf:"temperature"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Timeout:     8 * time.Second,
		Temperature: 0.7,
	}
}

// Summarizer turns a listener profile into a natural-language summary via an
// OpenAI-compatible chat completion. Callers hold the deterministic fallback;
// every error path here simply surfaces the error.
type Summarizer struct {
	cfg    Config
	client *openai.Client
	logger zerolog.Logger
}

// NewSummarizer builds a summarizer. Returns nil when no API key is
// configured, which callers treat as "summarizer absent".
func NewSummarizer(cfg Config, logger zerolog.Logger) *Summarizer {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &Summarizer{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

// Summarize produces a 2-3 sentence natural-language summary of the profile.
func (s *Summarizer) Summarize(ctx context.Context, profile *recommend.Profile) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You summarize music listening profiles. Reply with a concise 2-3 sentence summary of the listener's taste and preferences, nothing else.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(profile),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", ErrEmptyCompletion
	}

	s.logger.Debug().Int("tokens", resp.Usage.TotalTokens).Msg("Generated profile summary")
	return summary, nil
}

func buildPrompt(profile *recommend.Profile) string {
	var b strings.Builder
	b.WriteString("Profile data:\n")
	fmt.Fprintf(&b, "%s\n\n", recommend.SummarizeProfile(profile))
	if len(profile.GenrePreferences) > 0 {
		fmt.Fprintf(&b, "Genre preferences: %v\n", profile.GenrePreferences)
	}
	fmt.Fprintf(&b, "Total interactions: %d\n", profile.TotalInteractions)
	return b.String()
}
