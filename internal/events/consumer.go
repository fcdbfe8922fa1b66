// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package events

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/melodex/internal/recommend"
)

// Handler processes one interaction event.
type Handler interface {
	ProcessInteraction(ctx context.Context, in recommend.Interaction) error
}

// Consumer drains the interaction topic and applies each event through the
// handler. It is a single goroutine, so per-user event ordering matches
// publish order.
type Consumer struct {
	bus     *Bus
	handler Handler
	logger  zerolog.Logger
}

// NewConsumer builds a consumer over the bus.
func NewConsumer(bus *Bus, handler Handler, logger zerolog.Logger) *Consumer {
	return &Consumer{
		bus:     bus,
		handler: handler,
		logger:  logger.With().Str("component", "feedback-consumer").Logger(),
	}
}

// Run consumes until ctx is cancelled or the bus closes. Malformed payloads
// and handler failures are acked after logging: the store's idempotent
// append means redelivery buys nothing, and an unackable poison message
// must not wedge the stream.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to interactions: %w", err)
	}
	c.logger.Info().Msg("Feedback consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				c.logger.Info().Msg("Interaction stream closed")
				return nil
			}

			var in recommend.Interaction
			if err := json.Unmarshal(msg.Payload, &in); err != nil {
				c.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("Malformed interaction payload")
				msg.Ack()
				continue
			}

			if err := c.handler.ProcessInteraction(ctx, in); err != nil {
				c.logger.Error().Err(err).
					Str("event_id", in.ID).
					Str("user_id", in.UserID).
					Msg("Failed to process interaction")
			}
			msg.Ack()
		}
	}
}
