// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package services

import (
	"context"
)

// BusRelay matches *websocket.Relay's Run method.
type BusRelay interface {
	Run(ctx context.Context) error
}

// RelayService wraps the bus-to-hub relay as a supervised service. If
// the relay's subscriptions fail, suture restarts it with fresh ones.
type RelayService struct {
	relay BusRelay
	name  string
}

// NewRelayService creates a new relay service wrapper.
func NewRelayService(relay BusRelay) *RelayService {
	return &RelayService{
		relay: relay,
		name:  "bus-relay",
	}
}

// Serve implements suture.Service.
func (r *RelayService) Serve(ctx context.Context) error {
	return r.relay.Run(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (r *RelayService) String() string {
	return r.name
}
