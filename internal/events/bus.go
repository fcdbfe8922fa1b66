// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/melodex/internal/recommend"
)

// TopicInteractions carries feedback events from the API to the consumer.
const TopicInteractions = "interactions"

// Bus is an in-process watermill pub/sub for interaction events. It
// decouples feedback acceptance (fast 202 at the API) from processing
// (store append, session update, profile recompute).
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// NewBus creates the in-process bus. bufferSize bounds how many accepted
// events may wait for the consumer before publishes block.
func NewBus(bufferSize int64, logger zerolog.Logger) *Bus {
	log := logger.With().Str("component", "events").Logger()
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: bufferSize},
			watermillAdapter{log},
		),
		logger: log,
	}
}

// PublishInteraction enqueues one feedback event. The watermill message UUID
// is the event ID, so the topic carries the same idempotency key the store
// enforces.
func (b *Bus) PublishInteraction(ctx context.Context, in recommend.Interaction) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}
	msg := message.NewMessage(in.ID, payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(TopicInteractions, msg); err != nil {
		return fmt.Errorf("publish interaction: %w", err)
	}
	return nil
}

// Subscribe returns the interaction message stream.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, TopicInteractions)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicInteractions, err)
	}
	return ch, nil
}

// Close shuts the bus down; pending subscribers see closed channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// watermillAdapter bridges watermill's logging interface onto zerolog.
type watermillAdapter struct {
	logger zerolog.Logger
}

func (a watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.logger.Error().Err(err), msg, fields)
}

func (a watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), msg, fields) // watermill info is noisy; demote
}

func (a watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), msg, fields)
}

func (a watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.logger.Trace(), msg, fields)
}

func (a watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := a.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return watermillAdapter{logger}
}

func (a watermillAdapter) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}
