// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package bus provides the in-process broadcast channel for state-change
// notifications: consent mutations, lead-score changes, new segments, A/B
// assignments, and funnel outcomes. Consumers (the websocket relay, tests)
// subscribe by topic; publishers never block on slow consumers.
//
// Built on Watermill's GoChannel Pub/Sub, which keeps the messaging model
// identical to a broker-backed deployment without requiring one.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Broadcast topics.
const (
	TopicConsentChanged   = "consent.changed"
	TopicLeadScoreChanged = "leadscore.changed"
	TopicSegmentAdded     = "segment.added"
	TopicABAssigned       = "abtest.assigned"
	TopicFunnelCompleted  = "funnel.completed"
	TopicFunnelAbandoned  = "funnel.abandoned"
)

// Bus wraps a GoChannel Pub/Sub with JSON payload helpers.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// New creates a bus with a bounded per-subscriber buffer. Messages to a
// full subscriber are dropped rather than blocking the publisher, matching
// the pipeline's no-retry degradation policy.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(logger zerolog.Logger) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		newWatermillAdapter(logger),
	)
	return &Bus{
		pubsub: pubsub,
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Publish marshals payload as JSON and publishes it on topic.
func (b *Bus) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(uuid.New().String(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a channel of messages for topic. The subscription ends
// when ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts down the pub/sub and all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// watermillAdapter routes Watermill's internal logging into zerolog.
type watermillAdapter struct {
	logger zerolog.Logger
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newWatermillAdapter(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillAdapter{logger: logger.With().Str("component", "watermill").Logger()}
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.logger.Error().Err(err), fields).Msg(msg)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), fields).Msg(msg)
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), fields).Msg(msg)
}

func (a *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.logger.Trace(), fields).Msg(msg)
}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := a.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return &watermillAdapter{logger: logger}
}

func (a *watermillAdapter) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
