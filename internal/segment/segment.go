// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package segment derives discrete behavioral labels and weighted interest
// scores from accumulated signals. Update is a pure recompute from current
// counters plus the existing set (needed for converter precedence), so it
// is idempotent and safe to call repeatedly.
package segment

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/bus"
	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/leadscore"
	"github.com/prakritilabs/vedalytics/internal/metrics"
)

// Segment labels.
const (
	FirstTimeVisitor = "first_time_visitor"
	ReturningVisitor = "returning_visitor"
	ServiceExplorer  = "service_explorer"
	ToolUser         = "tool_user"
	NearConverter    = "near_converter"
	Converter        = "converter"
	HighEngagement   = "high_engagement"
)

// Rule thresholds.
const (
	serviceInterestThreshold = 3
	toolInterestThreshold    = 1
	highEngagementMs         = 120_000
)

// Signals are the inputs the recompute reads. The caller (event pipeline
// or API) assembles them from identity and session state.
type Signals struct {
	VisitCount      int
	SessionEngageMs int64
}

// AddedEvent is the broadcast payload for newly applied labels.
type AddedEvent struct {
	VisitorID string `json:"visitor_id"`
	Segment   string `json:"segment"`
}

// SignalSource supplies visit count and session engagement for a visitor.
// Implemented by the identity manager wiring in the pipeline.
type SignalSource interface {
	Signals(ctx context.Context, visitorID string) Signals
}

// Engine computes segment membership and tracks interest weights.
type Engine struct {
	store   kv.Store
	bus     *bus.Bus
	leads   *leadscore.Accumulator
	signals SignalSource
	logger  zerolog.Logger
}

// NewEngine creates a segmentation engine over the durable scope.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(store kv.Store, b *bus.Bus, leads *leadscore.Accumulator, signals SignalSource, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		bus:     b,
		leads:   leads,
		signals: signals,
		logger:  logger.With().Str("component", "segment").Logger(),
	}
}

func segmentsKey(visitorID string) string  { return "segments:" + visitorID }
func interestsKey(visitorID string) string { return "interests:" + visitorID }

// Segments returns the visitor's current labels, sorted for determinism.
func (e *Engine) Segments(ctx context.Context, visitorID string) []string {
	set := e.loadSet(ctx, visitorID)
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the visitor carries the given label.
func (e *Engine) Has(ctx context.Context, visitorID, segment string) bool {
	_, ok := e.loadSet(ctx, visitorID)[segment]
	return ok
}

// Update recomputes segment membership from current counters and the
// existing set, persists the result, and broadcasts newly added labels.
// Calling it twice with no intervening state change yields an identical
// set both times.
func (e *Engine) Update(ctx context.Context, visitorID string) ([]string, error) {
	set := e.loadSet(ctx, visitorID)
	before := make(map[string]struct{}, len(set))
	for s := range set {
		before[s] = struct{}{}
	}

	signals := Signals{}
	if e.signals != nil {
		signals = e.signals.Signals(ctx, visitorID)
	}
	interests := e.Interests(ctx, visitorID)
	score := e.leads.Get(ctx, visitorID)

	// first_time and returning are mutually exclusive.
	if signals.VisitCount <= 1 {
		set[FirstTimeVisitor] = struct{}{}
		delete(set, ReturningVisitor)
	} else {
		set[ReturningVisitor] = struct{}{}
		delete(set, FirstTimeVisitor)
	}

	// Sticky labels: applied once, never auto-removed.
	if interests["services"] >= serviceInterestThreshold {
		set[ServiceExplorer] = struct{}{}
	}
	if interests["tools"] >= toolInterestThreshold {
		set[ToolUser] = struct{}{}
	}
	if signals.SessionEngageMs > highEngagementMs {
		set[HighEngagement] = struct{}{}
	}

	// Conversion supersedes "near".
	_, converted := set[Converter]
	if score >= leadscore.HotThreshold && !converted {
		set[NearConverter] = struct{}{}
	}
	if converted {
		delete(set, NearConverter)
	}

	if err := e.saveSet(ctx, visitorID, set); err != nil {
		return nil, err
	}

	for s := range set {
		if _, existed := before[s]; !existed {
			e.broadcastAdded(visitorID, s)
		}
	}

	return e.Segments(ctx, visitorID), nil
}

// MarkConverted adds the converter label and clears near_converter. Called
// by the funnel on completion.
func (e *Engine) MarkConverted(ctx context.Context, visitorID string) error {
	set := e.loadSet(ctx, visitorID)
	_, had := set[Converter]
	set[Converter] = struct{}{}
	delete(set, NearConverter)
	if err := e.saveSet(ctx, visitorID, set); err != nil {
		return err
	}
	if !had {
		e.broadcastAdded(visitorID, Converter)
	}
	return nil
}

// TrackInterest additively accumulates weight for a topic. Weights never
// reset except on full data clear.
func (e *Engine) TrackInterest(ctx context.Context, visitorID, topic string, weight int) error {
	if weight == 0 {
		weight = 1
	}
	interests := e.Interests(ctx, visitorID)
	interests[topic] += weight
	return kv.SetJSON(ctx, e.store, interestsKey(visitorID), interests)
}

// Interests returns the visitor's topic weight map; absent data reads as
// an empty map.
func (e *Engine) Interests(ctx context.Context, visitorID string) map[string]int {
	interests := map[string]int{}
	if err := kv.GetJSON(ctx, e.store, interestsKey(visitorID), &interests); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("segment").Inc()
			e.logger.Warn().Err(err).Str("visitor", visitorID).Msg("interest read failed, treating as empty")
		}
	}
	return interests
}

// TopInterests returns up to n topics ordered by descending weight, ties
// broken alphabetically.
func (e *Engine) TopInterests(ctx context.Context, visitorID string, n int) []string {
	interests := e.Interests(ctx, visitorID)
	topics := make([]string, 0, len(interests))
	for topic := range interests {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if interests[topics[i]] != interests[topics[j]] {
			return interests[topics[i]] > interests[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

func (e *Engine) loadSet(ctx context.Context, visitorID string) map[string]struct{} {
	var labels []string
	if err := kv.GetJSON(ctx, e.store, segmentsKey(visitorID), &labels); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("segment").Inc()
			e.logger.Warn().Err(err).Str("visitor", visitorID).Msg("segment read failed, treating as empty")
		}
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return set
}

func (e *Engine) saveSet(ctx context.Context, visitorID string, set map[string]struct{}) error {
	labels := make([]string, 0, len(set))
	for s := range set {
		labels = append(labels, s)
	}
	sort.Strings(labels)
	return kv.SetJSON(ctx, e.store, segmentsKey(visitorID), labels)
}

func (e *Engine) broadcastAdded(visitorID, segment string) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(bus.TopicSegmentAdded, AddedEvent{VisitorID: visitorID, Segment: segment}); err != nil {
		e.logger.Warn().Err(err).Msg("segment broadcast failed")
	}
}
