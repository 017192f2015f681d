// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/governance"
)

// RetentionCleaner matches *governance.Manager's cleanup method.
type RetentionCleaner interface {
	RunRetentionCleanup(ctx context.Context) (governance.CleanupReport, error)
}

// JanitorService runs the retention cleanup on a fixed interval. A
// failed sweep logs and waits for the next tick; it never crashes the
// service.
type JanitorService struct {
	cleaner  RetentionCleaner
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewJanitorService creates a new retention janitor.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewJanitorService(cleaner RetentionCleaner, interval time.Duration, logger zerolog.Logger) *JanitorService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &JanitorService{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With().Str("component", "janitor").Logger(),
		name:     "retention-janitor",
	}
}

// Serve implements suture.Service. One sweep runs immediately on start
// so a crash-looping process still enforces retention.
func (j *JanitorService) Serve(ctx context.Context) error {
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *JanitorService) sweep(ctx context.Context) {
	report, err := j.cleaner.RunRetentionCleanup(ctx)
	if err != nil {
		j.logger.Warn().Err(err).Msg("retention sweep failed")
		return
	}
	j.logger.Info().
		Int("cleaned", report.Cleaned).
		Int("remaining", report.Remaining).
		Int("failures", len(report.Failures)).
		Msg("retention sweep complete")
}

// String implements fmt.Stringer for suture's log messages.
func (j *JanitorService) String() string {
	return j.name
}
