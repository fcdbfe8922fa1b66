// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package services

import (
	"context"
	"fmt"
)

// Runner is a blocking worker that returns when its context is cancelled
// or its input source is closed.
type Runner interface {
	Run(ctx context.Context) error
}

// ConsumerService adapts a Runner (the interaction consumer) to
// suture.Service so the supervision tree restarts it on failure.
type ConsumerService struct {
	name   string
	runner Runner
}

// NewConsumerService wraps a runner as a supervised service.
func NewConsumerService(name string, runner Runner) *ConsumerService {
	return &ConsumerService{name: name, runner: runner}
}

// Serve implements suture.Service.
func (c *ConsumerService) Serve(ctx context.Context) error {
	if err := c.runner.Run(ctx); err != nil {
		return fmt.Errorf("consumer %s failed: %w", c.name, err)
	}
	return nil
}

// String implements fmt.Stringer for supervisor logging.
func (c *ConsumerService) String() string {
	return c.name
}
