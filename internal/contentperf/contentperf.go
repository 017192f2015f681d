// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package contentperf maintains per-path page metrics as incremental
// running means over the page-view count. No raw history is retained;
// every average is folded in-place with newAvg = (oldAvg*(n-1)+sample)/n.
package contentperf

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/metrics"
)

// Composite score weights. They sum to 1.0.
const (
	weightTime       = 0.3
	weightScroll     = 0.3
	weightEngagement = 0.2
	weightConversion = 0.2
)

// Normalization caps: 3 minutes of dwell and a 10% conversion rate both
// score 100.
const (
	timeCapSeconds    = 180.0
	conversionCapRate = 10.0
)

// Performance is the per-path aggregate.
type Performance struct {
	Path           string  `json:"path"`
	PageViews      int     `json:"page_views"`
	AvgTimeOnPage  float64 `json:"avg_time_on_page_s"`
	AvgScrollDepth float64 `json:"avg_scroll_depth"`
	EngagementRate float64 `json:"engagement_rate"`
	ConversionRate float64 `json:"conversion_rate"`
	Score          int     `json:"score"`
}

// Scorer tracks page visits and folds samples into running aggregates.
type Scorer struct {
	store  kv.Store
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewScorer creates a content performance scorer over the durable scope.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScorer(store kv.Store, logger zerolog.Logger) *Scorer {
	return &Scorer{
		store:  store,
		logger: logger.With().Str("component", "contentperf").Logger(),
		active: make(map[string]struct{}),
	}
}

func key(path string) string { return "contentperf:" + path }

// StartTracking increments the page-view count for path and opens a
// logical visit that the matching EndTracking closes.
func (s *Scorer) StartTracking(ctx context.Context, path string) error {
	perf := s.load(ctx, path)
	perf.PageViews++
	if err := kv.SetJSON(ctx, s.store, key(path), perf); err != nil {
		return err
	}

	s.mu.Lock()
	s.active[path] = struct{}{}
	s.mu.Unlock()
	return nil
}

// EndTracking folds the visit's samples into the running aggregates. A
// call without a matching StartTracking in the same logical visit is a
// no-op.
func (s *Scorer) EndTracking(ctx context.Context, path string, timeOnPage time.Duration, scrollDepth int, hadEngagement, converted bool) error {
	s.mu.Lock()
	_, open := s.active[path]
	if open {
		delete(s.active, path)
	}
	s.mu.Unlock()
	if !open {
		return nil
	}

	perf := s.load(ctx, path)
	n := float64(perf.PageViews)
	if n < 1 {
		n = 1
	}

	perf.AvgTimeOnPage = (perf.AvgTimeOnPage*(n-1) + timeOnPage.Seconds()) / n
	perf.AvgScrollDepth = (perf.AvgScrollDepth*(n-1) + float64(scrollDepth)) / n
	perf.EngagementRate = foldRate(perf.EngagementRate, n, hadEngagement)
	perf.ConversionRate = foldRate(perf.ConversionRate, n, converted)
	perf.Score = compositeScore(perf)
	perf.Path = path

	return kv.SetJSON(ctx, s.store, key(path), perf)
}

// foldRate updates a percentage rate incrementally by reconstructing the
// hit count so far from the stored rate. The reconstruction loses
// precision versus exact counters; the formula is kept deliberately for
// parity with the accumulated data already in the field.
func foldRate(rate, n float64, hit bool) float64 {
	count := math.Round(rate * (n - 1) / 100)
	if hit {
		count++
	}
	return count / n * 100
}

// compositeScore is a weighted sum of four 0-100 normalized components,
// rounded to an integer.
func compositeScore(perf Performance) int {
	timeScore := math.Min(perf.AvgTimeOnPage/timeCapSeconds*100, 100)
	scrollScore := math.Min(perf.AvgScrollDepth, 100)
	engagementScore := math.Min(perf.EngagementRate, 100)
	conversionScore := math.Min(perf.ConversionRate/conversionCapRate*100, 100)

	score := timeScore*weightTime +
		scrollScore*weightScroll +
		engagementScore*weightEngagement +
		conversionScore*weightConversion
	return int(math.Round(score))
}

// Get returns the aggregate for path; absent data reads as a zero record.
func (s *Scorer) Get(ctx context.Context, path string) Performance {
	perf := s.load(ctx, path)
	perf.Path = path
	return perf
}

// All returns every tracked path's aggregate.
func (s *Scorer) All(ctx context.Context) ([]Performance, error) {
	keys, err := s.store.Keys(ctx, "contentperf:")
	if err != nil {
		return nil, err
	}
	out := make([]Performance, 0, len(keys))
	for _, k := range keys {
		var perf Performance
		if err := kv.GetJSON(ctx, s.store, k, &perf); err != nil {
			metrics.StorageErrors.WithLabelValues("contentperf").Inc()
			s.logger.Warn().Err(err).Str("key", k).Msg("content record read failed, skipping")
			continue
		}
		out = append(out, perf)
	}
	return out, nil
}

func (s *Scorer) load(ctx context.Context, path string) Performance {
	var perf Performance
	if err := kv.GetJSON(ctx, s.store, key(path), &perf); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("contentperf").Inc()
			s.logger.Warn().Err(err).Str("path", path).Msg("content record read failed, treating as new")
		}
		return Performance{Path: path}
	}
	return perf
}
