// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package abtest implements deterministic-once weighted bucketing. A
// visitor is assigned to a variant at most once per test; the persisted
// assignment wins over any later weight changes in the config.
package abtest

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/bus"
	"github.com/prakritilabs/vedalytics/internal/config"
	"github.com/prakritilabs/vedalytics/internal/kv"
)

// ErrVariantNotFound is returned when a stored assignment references a
// variant id no longer present in the current test config. The assignment
// is kept; no re-bucketing occurs.
var ErrVariantNotFound = errors.New("abtest: assigned variant missing from config")

// Variant is one weighted arm of a test.
type Variant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// Test is a declared experiment.
type Test struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
	Variants []Variant `json:"variants"`
}

// AssignedEvent is the broadcast payload fired on first assignment only.
type AssignedEvent struct {
	VisitorID string `json:"visitor_id"`
	TestID    string `json:"test_id"`
	VariantID string `json:"variant_id"`
}

// Store holds the test registry and persisted assignments.
type Store struct {
	store  kv.Store
	bus    *bus.Bus
	tests  map[string]Test
	logger zerolog.Logger

	registrar Registrar

	rng   *rand.Rand
	rngMu sync.Mutex
}

// Registrar records fresh assignments in the data inventory so retention
// and erasure cover them. Satisfied by *governance.Manager.
type Registrar interface {
	RegisterAssignment(ctx context.Context, visitorID, key string) error
}

// NewStore creates an assignment store from declared test configs. Seed 0
// selects the default seed; a fixed seed makes bucketing reproducible in
// tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(store kv.Store, b *bus.Bus, tests []config.ABTestConfig, seed int64, logger zerolog.Logger) *Store {
	if seed == 0 {
		seed = 42
	}
	registry := make(map[string]Test, len(tests))
	for _, tc := range tests {
		test := Test{ID: tc.ID, Name: tc.Name, Active: tc.Active}
		for _, vc := range tc.Variants {
			test.Variants = append(test.Variants, Variant(vc))
		}
		registry[test.ID] = test
	}
	return &Store{
		store:  store,
		bus:    b,
		tests:  registry,
		logger: logger.With().Str("component", "abtest").Logger(),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // bucketing needs no crypto randomness
	}
}

// SetRegistrar wires the data-inventory hook for fresh assignments.
func (s *Store) SetRegistrar(r Registrar) {
	s.registrar = r
}

func assignmentKey(visitorID, testID string) string {
	return "abtest:" + visitorID + ":" + testID
}

// Variant returns the visitor's variant for testID.
//
// Unknown or inactive tests yield (nil, nil): no assignment, no tracking.
// A fresh assignment is persisted before the assignment broadcast fires,
// so a tracking failure cannot desynchronize assignment from bucketing.
// Subsequent calls are silent reads.
func (s *Store) Variant(ctx context.Context, visitorID, testID string) (*Variant, error) {
	test, ok := s.tests[testID]
	if !ok || !test.Active || len(test.Variants) == 0 {
		return nil, nil
	}

	var assignedID string
	err := kv.GetJSON(ctx, s.store, assignmentKey(visitorID, testID), &assignedID)
	if err == nil {
		// Sticky: resolve against the current config by id.
		for i := range test.Variants {
			if test.Variants[i].ID == assignedID {
				v := test.Variants[i]
				return &v, nil
			}
		}
		return nil, ErrVariantNotFound
	}
	if !errors.Is(err, kv.ErrKeyNotFound) {
		s.logger.Warn().Err(err).Str("test", testID).Msg("assignment read failed, re-bucketing")
	}

	selected := s.pick(test.Variants)
	if err := kv.SetJSON(ctx, s.store, assignmentKey(visitorID, testID), selected.ID); err != nil {
		return nil, err
	}
	if s.registrar != nil {
		if err := s.registrar.RegisterAssignment(ctx, visitorID, assignmentKey(visitorID, testID)); err != nil {
			s.logger.Warn().Err(err).Str("test", testID).Msg("inventory registration failed")
		}
	}

	if s.bus != nil {
		event := AssignedEvent{VisitorID: visitorID, TestID: testID, VariantID: selected.ID}
		if err := s.bus.Publish(bus.TopicABAssigned, event); err != nil {
			s.logger.Warn().Err(err).Str("test", testID).Msg("assignment broadcast failed")
		}
	}

	return &selected, nil
}

// pick draws r uniform in [0, totalWeight) and selects the first variant
// whose cumulative weight exceeds r; ties break by declared order. The
// first variant is the defined fallback for float edge cases.
func (s *Store) pick(variants []Variant) Variant {
	total := 0
	for _, v := range variants {
		total += v.Weight
	}
	if total <= 0 {
		return variants[0]
	}

	s.rngMu.Lock()
	r := s.rng.Float64() * float64(total)
	s.rngMu.Unlock()

	cumulative := 0.0
	for _, v := range variants {
		cumulative += float64(v.Weight)
		if r < cumulative {
			return v
		}
	}
	return variants[0]
}

// Reset removes the visitor's assignment for testID.
func (s *Store) Reset(ctx context.Context, visitorID, testID string) error {
	return s.store.Delete(ctx, assignmentKey(visitorID, testID))
}

// ResetAll removes every assignment for the visitor.
func (s *Store) ResetAll(ctx context.Context, visitorID string) error {
	keys, err := s.store.Keys(ctx, "abtest:"+visitorID+":")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Tests returns the declared test registry.
func (s *Store) Tests() map[string]Test {
	out := make(map[string]Test, len(s.tests))
	for id, t := range s.tests {
		out[id] = t
	}
	return out
}
