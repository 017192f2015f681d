// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package websocket

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/bus"
)

// topicMessageTypes maps bus topics to client message types.
var topicMessageTypes = map[string]string{
	bus.TopicConsentChanged:   MessageTypeConsentChanged,
	bus.TopicLeadScoreChanged: MessageTypeLeadScoreChanged,
	bus.TopicSegmentAdded:     MessageTypeSegmentAdded,
	bus.TopicABAssigned:       MessageTypeABAssigned,
	bus.TopicFunnelCompleted:  MessageTypeFunnelCompleted,
	bus.TopicFunnelAbandoned:  MessageTypeFunnelAbandoned,
}

// Relay consumes engine broadcasts from the bus and republishes them to
// the hub's clients.
type Relay struct {
	bus    *bus.Bus
	hub    *Hub
	logger zerolog.Logger
}

// NewRelay creates a bus-to-hub relay.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRelay(b *bus.Bus, hub *Hub, logger zerolog.Logger) *Relay {
	return &Relay{
		bus:    b,
		hub:    hub,
		logger: logger.With().Str("component", "ws-relay").Logger(),
	}
}

// Run subscribes to every broadcast topic and forwards messages until
// the context is canceled.
func (r *Relay) Run(ctx context.Context) error {
	for topic, messageType := range topicMessageTypes {
		messages, err := r.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go r.pump(ctx, messageType, messages)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (r *Relay) pump(ctx context.Context, messageType string, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var data any
			if err := json.Unmarshal(msg.Payload, &data); err != nil {
				r.logger.Warn().Err(err).Str("type", messageType).Msg("broadcast payload unmarshal failed")
				msg.Ack()
				continue
			}
			r.hub.Broadcast(messageType, data)
			msg.Ack()
		}
	}
}
