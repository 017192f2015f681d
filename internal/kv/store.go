// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package kv defines the key-value storage abstraction used by every
// stateful component. The engine treats storage as a flat key space of
// JSON records; Store keeps the core logic storage-agnostic so production
// can run on BadgerDB while tests run on an in-memory fake.
//
// Two scopes exist at runtime: a durable store (survives restarts) and a
// session-scoped store (intentionally volatile, backing funnel and chat
// conversation state).
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrKeyNotFound is returned when a key has no stored value.
var ErrKeyNotFound = errors.New("kv: key not found")

// Store is the minimal key-value contract the engine depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// GetJSON reads key and unmarshals it into out.
// Corrupt stored values are reported as errors; callers treat them as
// absent data per the degradation policy.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
