// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package funnel tracks ordered progress through the booking flow.
// One funnel instance is live per visitor at a time, held in the
// session-scoped store; completion and abandonment are terminal for that
// instance, and Start always creates a fresh one.
package funnel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/bus"
	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/metrics"
)

// clearDelay is how long a completed funnel stays readable before its
// storage entry is cleared. Not immediate, to allow a final read by
// callers.
const clearDelay = time.Second

// StepSubmit is the final step appended on completion.
const StepSubmit = "submit"

// formAllowList is the anti-PII subset of form data retained on
// completion.
var formAllowList = map[string]struct{}{
	"service": {},
	"date":    {},
	"time":    {},
}

// Step is one recorded funnel step. TimeSpent is back-filled when the
// next step is recorded, never before.
type Step struct {
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	TimeSpent time.Duration `json:"time_spent,omitempty"`
}

// Funnel is one booking funnel instance.
type Funnel struct {
	SessionID        string            `json:"session_id"`
	StartTime        time.Time         `json:"start_time"`
	Steps            []Step            `json:"steps"`
	Completed        bool              `json:"completed"`
	CompletionTime   time.Duration     `json:"completion_time,omitempty"`
	AbandonmentPoint string            `json:"abandonment_point,omitempty"`
	FormData         map[string]string `json:"form_data,omitempty"`
}

// OutcomeEvent is the broadcast payload for completion and abandonment.
type OutcomeEvent struct {
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
	Steps     int    `json:"steps"`
	Reason    string `json:"reason,omitempty"`
}

// Converter receives the conversion signal on funnel completion.
// Satisfied by *segment.Engine.
type Converter interface {
	MarkConverted(ctx context.Context, visitorID string) error
}

// Tracker owns funnel state and its clear-after-delay timers.
type Tracker struct {
	store     kv.Store
	bus       *bus.Bus
	converter Converter
	now       func() time.Time
	logger    zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewTracker creates a funnel tracker over the session-scoped store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTracker(store kv.Store, b *bus.Bus, converter Converter, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:     store,
		bus:       b,
		converter: converter,
		now:       time.Now,
		logger:    logger.With().Str("component", "funnel").Logger(),
		timers:    make(map[string]*time.Timer),
	}
}

// SetNow overrides the clock. Intended for tests.
func (t *Tracker) SetNow(now func() time.Time) { t.now = now }

func key(visitorID string) string { return "funnel:" + visitorID }

// Start creates a fresh funnel instance regardless of prior terminal
// state, cancelling any pending clear for the previous one.
func (t *Tracker) Start(ctx context.Context, visitorID, sessionID string) (*Funnel, error) {
	t.cancelClear(visitorID)
	f := &Funnel{SessionID: sessionID, StartTime: t.now()}
	if err := kv.SetJSON(ctx, t.store, key(visitorID), f); err != nil {
		return nil, err
	}
	return f, nil
}

// Get returns the live funnel, or kv.ErrKeyNotFound.
func (t *Tracker) Get(ctx context.Context, visitorID string) (*Funnel, error) {
	var f Funnel
	if err := kv.GetJSON(ctx, t.store, key(visitorID), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// TrackStep appends a step, auto-starting a funnel if none is active, and
// back-fills the previous step's dwell time. Steps are appended in call
// order; duplicate or out-of-order names are accepted as-is.
func (t *Tracker) TrackStep(ctx context.Context, visitorID, sessionID, name string) error {
	f, err := t.Get(ctx, visitorID)
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("funnel").Inc()
			t.logger.Warn().Err(err).Str("visitor", visitorID).Msg("funnel read failed, restarting")
		}
		if f, err = t.Start(ctx, visitorID, sessionID); err != nil {
			return err
		}
	}
	if f.Completed {
		// Terminal instance; a tracked step implies a new attempt.
		if f, err = t.Start(ctx, visitorID, sessionID); err != nil {
			return err
		}
	}

	now := t.now()
	if n := len(f.Steps); n > 0 {
		f.Steps[n-1].TimeSpent = now.Sub(f.Steps[n-1].Timestamp)
	}
	f.Steps = append(f.Steps, Step{Name: name, Timestamp: now})

	return kv.SetJSON(ctx, t.store, key(visitorID), f)
}

// Complete marks the funnel completed, strips form data to the allow
// list, appends the submit step, signals the converter, broadcasts, and
// schedules storage clearance after a fixed delay.
func (t *Tracker) Complete(ctx context.Context, visitorID string, formData map[string]string) error {
	f, err := t.Get(ctx, visitorID)
	if err != nil {
		return err
	}
	if f.Completed {
		return nil
	}

	now := t.now()
	if n := len(f.Steps); n > 0 {
		f.Steps[n-1].TimeSpent = now.Sub(f.Steps[n-1].Timestamp)
	}
	f.Steps = append(f.Steps, Step{Name: StepSubmit, Timestamp: now})
	f.Completed = true
	f.CompletionTime = now.Sub(f.StartTime)
	f.FormData = stripFormData(formData)

	if err := kv.SetJSON(ctx, t.store, key(visitorID), f); err != nil {
		return err
	}

	if t.converter != nil {
		if err := t.converter.MarkConverted(ctx, visitorID); err != nil {
			t.logger.Warn().Err(err).Str("visitor", visitorID).Msg("conversion signal failed")
		}
	}

	metrics.FunnelsCompleted.Inc()
	t.broadcast(bus.TopicFunnelCompleted, OutcomeEvent{
		VisitorID: visitorID,
		SessionID: f.SessionID,
		Steps:     len(f.Steps),
	})

	t.scheduleClear(visitorID)
	return nil
}

// Abandon records the abandonment point and broadcasts. It is a no-op if
// the funnel is already completed or was never started.
func (t *Tracker) Abandon(ctx context.Context, visitorID, reason string) error {
	f, err := t.Get(ctx, visitorID)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if f.Completed {
		return nil
	}

	if n := len(f.Steps); n > 0 {
		f.AbandonmentPoint = f.Steps[n-1].Name
	}
	if err := kv.SetJSON(ctx, t.store, key(visitorID), f); err != nil {
		return err
	}

	metrics.FunnelsAbandoned.Inc()
	t.broadcast(bus.TopicFunnelAbandoned, OutcomeEvent{
		VisitorID: visitorID,
		SessionID: f.SessionID,
		Steps:     len(f.Steps),
		Reason:    reason,
	})
	return nil
}

// Close cancels every outstanding clear timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *Tracker) scheduleClear(visitorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if timer, ok := t.timers[visitorID]; ok {
		timer.Stop()
	}
	t.timers[visitorID] = time.AfterFunc(clearDelay, func() {
		if err := t.store.Delete(context.Background(), key(visitorID)); err != nil {
			t.logger.Warn().Err(err).Str("visitor", visitorID).Msg("funnel clear failed")
		}
		t.mu.Lock()
		delete(t.timers, visitorID)
		t.mu.Unlock()
	})
}

func (t *Tracker) cancelClear(visitorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[visitorID]; ok {
		timer.Stop()
		delete(t.timers, visitorID)
	}
}

func (t *Tracker) broadcast(topic string, event OutcomeEvent) {
	if t.bus == nil {
		return
	}
	if err := t.bus.Publish(topic, event); err != nil {
		t.logger.Warn().Err(err).Str("topic", topic).Msg("funnel broadcast failed")
	}
}

func stripFormData(form map[string]string) map[string]string {
	if len(form) == 0 {
		return nil
	}
	out := make(map[string]string)
	for k, v := range form {
		if _, ok := formAllowList[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
