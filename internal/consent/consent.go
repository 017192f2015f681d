// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package consent is the source of truth for granted tracking permissions.
// Every tracking call in the engine passes through HasConsentFor; a stored
// record whose schema version mismatches the current one is treated as
// absent consent, forcing a re-prompt rather than erroring.
package consent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/bus"
	"github.com/prakritilabs/vedalytics/internal/kv"
)

// Category identifies a consent category.
type Category string

const (
	CategoryEssential       Category = "essential"
	CategoryAnalytics       Category = "analytics"
	CategoryMarketing       Category = "marketing"
	CategoryPersonalization Category = "personalization"
)

// State is the full consent record for one visitor.
// Essential is always true; the other categories default to false.
type State struct {
	Essential       bool      `json:"essential"`
	Analytics       bool      `json:"analytics"`
	Marketing       bool      `json:"marketing"`
	Personalization bool      `json:"personalization"`
	Timestamp       time.Time `json:"timestamp"`
	Version         int       `json:"version"`
}

// Update is a partial consent mutation. Nil fields are left unchanged.
type Update struct {
	Analytics       *bool `json:"analytics"`
	Marketing       *bool `json:"marketing"`
	Personalization *bool `json:"personalization"`
}

// ChangedEvent is the broadcast payload for consent mutations.
type ChangedEvent struct {
	VisitorID string `json:"visitor_id"`
	State     State  `json:"state"`
	Revoked   bool   `json:"revoked,omitempty"`
}

// Store persists consent state and notifies subscribers on every mutation.
type Store struct {
	store   kv.Store
	bus     *bus.Bus
	version int
	now     func() time.Time
	logger  zerolog.Logger

	mu      sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewStore creates a consent store over the durable scope.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(store kv.Store, b *bus.Bus, version int, logger zerolog.Logger) *Store {
	return &Store{
		store:   store,
		bus:     b,
		version: version,
		now:     time.Now,
		logger:  logger.With().Str("component", "consent").Logger(),
		subs:    make(map[int]func(State)),
	}
}

// SetNow overrides the clock. Intended for tests.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

func (s *Store) key(visitorID string) string { return "consent:" + visitorID }

// defaults returns the all-false-except-essential state.
func (s *Store) defaults() State {
	return State{Essential: true, Version: s.version}
}

// Get returns the visitor's consent state. Absent, corrupt, or
// version-mismatched records all yield the defaults.
func (s *Store) Get(ctx context.Context, visitorID string) State {
	var state State
	err := kv.GetJSON(ctx, s.store, s.key(visitorID), &state)
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("visitor", visitorID).Msg("consent read failed, treating as absent")
		}
		return s.defaults()
	}
	if state.Version != s.version {
		// Schema changed since the record was written: force a re-prompt.
		return s.defaults()
	}
	state.Essential = true
	return state
}

// Update merges the partial update into the current state, forces essential
// on, restamps timestamp and version, persists, and notifies subscribers
// and the broadcast bus with the full new state.
func (s *Store) Update(ctx context.Context, visitorID string, update Update) (State, error) {
	state := s.Get(ctx, visitorID)
	if update.Analytics != nil {
		state.Analytics = *update.Analytics
	}
	if update.Marketing != nil {
		state.Marketing = *update.Marketing
	}
	if update.Personalization != nil {
		state.Personalization = *update.Personalization
	}
	state.Essential = true
	state.Timestamp = s.now()
	state.Version = s.version

	if err := kv.SetJSON(ctx, s.store, s.key(visitorID), state); err != nil {
		return state, err
	}

	s.notify(visitorID, state, false)
	return state, nil
}

// AcceptAll grants every category.
func (s *Store) AcceptAll(ctx context.Context, visitorID string) (State, error) {
	yes := true
	return s.Update(ctx, visitorID, Update{Analytics: &yes, Marketing: &yes, Personalization: &yes})
}

// RejectAll denies every non-essential category.
func (s *Store) RejectAll(ctx context.Context, visitorID string) (State, error) {
	no := false
	return s.Update(ctx, visitorID, Update{Analytics: &no, Marketing: &no, Personalization: &no})
}

// Revoke resets consent to defaults and removes the persisted record.
func (s *Store) Revoke(ctx context.Context, visitorID string) error {
	if err := s.store.Delete(ctx, s.key(visitorID)); err != nil {
		return err
	}
	s.notify(visitorID, s.defaults(), true)
	return nil
}

// HasConsentFor is the single gate every tracking call must pass. It
// re-reads the current state on each call rather than caching.
func (s *Store) HasConsentFor(ctx context.Context, visitorID string, category Category) bool {
	state := s.Get(ctx, visitorID)
	switch category {
	case CategoryEssential:
		return true
	case CategoryAnalytics:
		return state.Analytics
	case CategoryMarketing:
		return state.Marketing
	case CategoryPersonalization:
		return state.Personalization
	default:
		return false
	}
}

// Subscribe registers a listener for consent mutations. The returned
// unsubscribe function is idempotent.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(visitorID string, state State, revoked bool) {
	s.mu.Lock()
	listeners := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}

	if s.bus != nil {
		event := ChangedEvent{VisitorID: visitorID, State: state, Revoked: revoked}
		if err := s.bus.Publish(bus.TopicConsentChanged, event); err != nil {
			s.logger.Warn().Err(err).Msg("consent broadcast failed")
		}
	}
}
