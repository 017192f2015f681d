// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package recommend ranks the fixed service catalog for a visitor by
// summing independent scoring factors. Personalized ranking reads
// accumulated state (dosha preference, interaction history, interests,
// segments); Similar and Trending are catalog-only and ignore the
// visitor entirely.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/metrics"
	"github.com/prakritilabs/vedalytics/internal/segment"
)

// Scoring factor weights.
const (
	doshaMatchBoost   = 30.0
	interactionWeight = 5.0
	tagInterestBoost  = 10.0
	toolUserBoost     = 15.0
	firstVisitBoost   = 20.0
	popularityWeight  = 0.2

	// recencyPenalty lowers the sort key of recently viewed services
	// without touching the reported score, so repeats rank lower but
	// are never hard-excluded.
	recencyPenalty = 20.0

	maxInteractions  = 50
	maxRecentViews   = 5
	topInterestCount = 5
)

// Similarity weights for catalog-only rankings.
const (
	simCategoryMatch = 10.0
	simDoshaOverlap  = 5.0
	simTagOverlap    = 5.0
)

// ErrServiceNotFound is returned when a similarity lookup names a
// service absent from the catalog.
var ErrServiceNotFound = errors.New("recommend: service not found")

// Scored pairs a catalog entry with its computed score.
type Scored struct {
	Service Service `json:"service"`
	Score   float64 `json:"score"`
}

// interaction is one recorded catalog touch. The per-service score is
// the sum of weights across retained records.
type interaction struct {
	ServiceID string    `json:"service_id"`
	Weight    int       `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// ProfileSource supplies segment membership and top interests for
// personalized ranking. Implemented by the segmentation engine.
type ProfileSource interface {
	Has(ctx context.Context, visitorID, seg string) bool
	TopInterests(ctx context.Context, visitorID string, n int) []string
}

// Engine ranks the catalog. Safe for concurrent use; all visitor state
// lives in the store.
type Engine struct {
	store   kv.Store
	profile ProfileSource
	catalog []Service
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine creates a recommendation engine. A nil catalog selects the
// built-in one.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(store kv.Store, profile ProfileSource, catalog []Service, logger zerolog.Logger) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{
		store:   store,
		profile: profile,
		catalog: catalog,
		logger:  logger.With().Str("component", "recommend").Logger(),
		now:     time.Now,
	}
}

// SetNow overrides the clock for tests.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

func doshaKey(visitorID string) string        { return "dosha:" + visitorID }
func interactionsKey(visitorID string) string { return "interactions:" + visitorID }
func viewsKey(visitorID string) string        { return "views:" + visitorID }

// Catalog returns the full catalog.
func (e *Engine) Catalog() []Service {
	out := make([]Service, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// SetDosha stores the visitor's dosha preference.
func (e *Engine) SetDosha(ctx context.Context, visitorID, dosha string) error {
	return e.store.Set(ctx, doshaKey(visitorID), []byte(dosha))
}

// Dosha returns the stored preference, or "" if none.
func (e *Engine) Dosha(ctx context.Context, visitorID string) string {
	raw, err := e.store.Get(ctx, doshaKey(visitorID))
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("recommend").Inc()
			e.logger.Warn().Err(err).Str("visitor", visitorID).Msg("dosha read failed")
		}
		return ""
	}
	return string(raw)
}

// RecordInteraction appends a weighted catalog touch, retaining the
// most recent maxInteractions records.
func (e *Engine) RecordInteraction(ctx context.Context, visitorID, serviceID string, weight int) error {
	if weight == 0 {
		weight = 1
	}
	history := e.interactions(ctx, visitorID)
	history = append(history, interaction{
		ServiceID: serviceID,
		Weight:    weight,
		Timestamp: e.now().UTC(),
	})
	if len(history) > maxInteractions {
		history = history[len(history)-maxInteractions:]
	}
	return kv.SetJSON(ctx, e.store, interactionsKey(visitorID), history)
}

// RecordView appends a service to the visitor's view history, retaining
// the last maxRecentViews entries.
func (e *Engine) RecordView(ctx context.Context, visitorID, serviceID string) error {
	views := e.recentViews(ctx, visitorID)
	views = append(views, serviceID)
	if len(views) > maxRecentViews {
		views = views[len(views)-maxRecentViews:]
	}
	return kv.SetJSON(ctx, e.store, viewsKey(visitorID), views)
}

// Recommend returns up to limit catalog entries ranked for the visitor.
// Recently viewed services are demoted in the ordering by a flat
// penalty applied to the sort key only; the reported score is the raw
// factor sum.
func (e *Engine) Recommend(ctx context.Context, visitorID string, limit int) []Scored {
	if limit <= 0 {
		limit = len(e.catalog)
	}

	dosha := e.Dosha(ctx, visitorID)
	perService := e.interactionScores(ctx, visitorID)
	recent := make(map[string]struct{})
	for _, id := range e.recentViews(ctx, visitorID) {
		recent[id] = struct{}{}
	}

	var interests []string
	toolUser, firstTime := false, false
	if e.profile != nil {
		interests = e.profile.TopInterests(ctx, visitorID, topInterestCount)
		toolUser = e.profile.Has(ctx, visitorID, segment.ToolUser)
		firstTime = e.profile.Has(ctx, visitorID, segment.FirstTimeVisitor)
	}

	type ranked struct {
		Scored
		sortKey float64
	}
	out := make([]ranked, 0, len(e.catalog))
	for _, svc := range e.catalog {
		score := e.score(svc, dosha, perService[svc.ID], interests, toolUser, firstTime)
		key := score
		if _, seen := recent[svc.ID]; seen {
			key -= recencyPenalty
		}
		out = append(out, ranked{Scored: Scored{Service: svc, Score: score}, sortKey: key})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].sortKey != out[j].sortKey {
			return out[i].sortKey > out[j].sortKey
		}
		return out[i].Service.ID < out[j].Service.ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	result := make([]Scored, len(out))
	for i, r := range out {
		result[i] = r.Scored
	}
	return result
}

func (e *Engine) score(svc Service, dosha string, interactionScore int, interests []string, toolUser, firstTime bool) float64 {
	score := popularityWeight * svc.Popularity

	if dosha != "" && svc.hasDosha(dosha) {
		score += doshaMatchBoost
	}
	score += interactionWeight * float64(interactionScore)

	// Each tag counts at most once, however many interests it matches.
	for _, tag := range svc.Tags {
		for _, interest := range interests {
			if strings.Contains(tag, interest) || strings.Contains(interest, tag) {
				score += tagInterestBoost
				break
			}
		}
	}

	if toolUser && (svc.Category == "assessment" || svc.Category == "consultation") {
		score += toolUserBoost
	}
	if firstTime && svc.hasTag("first-visit") {
		score += firstVisitBoost
	}

	return score
}

// Similar ranks the rest of the catalog by similarity to the named
// service: shared category, dosha affinity overlap, and tag overlap.
// No visitor state is consulted.
func (e *Engine) Similar(serviceID string, limit int) ([]Scored, error) {
	var base *Service
	for i := range e.catalog {
		if e.catalog[i].ID == serviceID {
			base = &e.catalog[i]
			break
		}
	}
	if base == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	if limit <= 0 {
		limit = len(e.catalog) - 1
	}

	out := make([]Scored, 0, len(e.catalog)-1)
	for _, svc := range e.catalog {
		if svc.ID == serviceID {
			continue
		}
		score := 0.0
		if svc.Category == base.Category {
			score += simCategoryMatch
		}
		for _, d := range svc.DoshaAffinity {
			if base.hasDosha(d) {
				score += simDoshaOverlap
			}
		}
		for _, t := range svc.Tags {
			if base.hasTag(t) {
				score += simTagOverlap
			}
		}
		out = append(out, Scored{Service: svc, Score: score})
	}

	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Trending ranks the catalog by popularity times conversion rate.
func (e *Engine) Trending(limit int) []Scored {
	if limit <= 0 {
		limit = len(e.catalog)
	}
	out := make([]Scored, 0, len(e.catalog))
	for _, svc := range e.catalog {
		out = append(out, Scored{Service: svc, Score: svc.Popularity * svc.ConversionRate})
	}
	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Service.ID < s[j].Service.ID
	})
}

func (e *Engine) interactions(ctx context.Context, visitorID string) []interaction {
	var history []interaction
	if err := kv.GetJSON(ctx, e.store, interactionsKey(visitorID), &history); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("recommend").Inc()
			e.logger.Warn().Err(err).Str("visitor", visitorID).Msg("interaction read failed, treating as empty")
		}
		return nil
	}
	return history
}

func (e *Engine) interactionScores(ctx context.Context, visitorID string) map[string]int {
	scores := make(map[string]int)
	for _, rec := range e.interactions(ctx, visitorID) {
		scores[rec.ServiceID] += rec.Weight
	}
	return scores
}

func (e *Engine) recentViews(ctx context.Context, visitorID string) []string {
	var views []string
	if err := kv.GetJSON(ctx, e.store, viewsKey(visitorID), &views); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("recommend").Inc()
			e.logger.Warn().Err(err).Str("visitor", visitorID).Msg("view history read failed, treating as empty")
		}
		return nil
	}
	return views
}
