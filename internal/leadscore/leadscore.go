// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package leadscore accumulates a monotonic conversion-intent score per
// visitor. Points are fixed per triggering action, never decay, and have
// no upper bound; status bands are derived from static thresholds.
package leadscore

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/bus"
	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/metrics"
)

// Point values per triggering action.
const (
	PointsPageView        = 1
	PointsServiceDetail   = 5
	PointsToolCompletion  = 10
	PointsChatMessage     = 15
	PointsBookingStart    = 25
	PointsBookingComplete = 50
	PointsReturnVisit     = 10
	PointsHighScroll      = 3
	PointsLongSession     = 5
)

// Status is the derived lead temperature band.
type Status string

const (
	StatusCold  Status = "cold"  // [0,20]
	StatusWarm  Status = "warm"  // [21,50]
	StatusHot   Status = "hot"   // [51,80]
	StatusReady Status = "ready" // [81,inf)
)

// HotThreshold is the score at which a lead counts as hot; the
// segmentation engine keys near_converter off it.
const HotThreshold = 51

// StatusFor maps a total score to its band.
func StatusFor(total int) Status {
	switch {
	case total >= 81:
		return StatusReady
	case total >= HotThreshold:
		return StatusHot
	case total >= 21:
		return StatusWarm
	default:
		return StatusCold
	}
}

// ChangedEvent is the broadcast payload for score mutations. It carries
// both the new total and the delta so consumers need not diff.
type ChangedEvent struct {
	VisitorID string `json:"visitor_id"`
	Total     int    `json:"total"`
	Delta     int    `json:"delta"`
	Status    Status `json:"status"`
}

// Accumulator persists one non-negative integer per visitor.
type Accumulator struct {
	store  kv.Store
	bus    *bus.Bus
	logger zerolog.Logger
}

// NewAccumulator creates a lead score accumulator over the durable scope.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAccumulator(store kv.Store, b *bus.Bus, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		store:  store,
		bus:    b,
		logger: logger.With().Str("component", "leadscore").Logger(),
	}
}

func key(visitorID string) string { return "leadscore:" + visitorID }

// Get returns the current total. The read path never mutates; absent or
// corrupt records read as zero.
func (a *Accumulator) Get(ctx context.Context, visitorID string) int {
	var total int
	if err := kv.GetJSON(ctx, a.store, key(visitorID), &total); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("leadscore").Inc()
			a.logger.Warn().Err(err).Str("visitor", visitorID).Msg("lead score read failed, treating as zero")
		}
		return 0
	}
	return total
}

// Add increments the visitor's total by points, persists it, and emits a
// change broadcast carrying the new total and the delta.
func (a *Accumulator) Add(ctx context.Context, visitorID string, points int) (int, error) {
	total := a.Get(ctx, visitorID) + points
	if err := kv.SetJSON(ctx, a.store, key(visitorID), total); err != nil {
		return 0, err
	}

	if a.bus != nil {
		event := ChangedEvent{
			VisitorID: visitorID,
			Total:     total,
			Delta:     points,
			Status:    StatusFor(total),
		}
		if err := a.bus.Publish(bus.TopicLeadScoreChanged, event); err != nil {
			a.logger.Warn().Err(err).Msg("lead score broadcast failed")
		}
	}
	return total, nil
}

// Status returns the visitor's current band.
func (a *Accumulator) Status(ctx context.Context, visitorID string) Status {
	return StatusFor(a.Get(ctx, visitorID))
}
