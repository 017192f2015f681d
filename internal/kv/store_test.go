// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package kv

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(value) != "1" {
		t.Errorf("expected value 1, got %s", value)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("delete of absent key should be nil, got %v", err)
	}
}

func TestMemoryStore_KeysPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, key := range []string{"leadscore:v1", "leadscore:v2", "segments:v1"} {
		if err := store.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("set %s failed: %v", key, err)
		}
	}

	keys, err := store.Keys(ctx, "leadscore:")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}
	if keys[0] != "leadscore:v1" || keys[1] != "leadscore:v2" {
		t.Errorf("unexpected keys order: %v", keys)
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := []byte("abc")
	if err := store.Set(ctx, "k", original); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	original[0] = 'z'

	value, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(value) != "abc" {
		t.Errorf("stored value mutated via caller slice: %s", value)
	}
}

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	in := record{Name: "services", Count: 3}
	if err := SetJSON(ctx, store, "interest", in); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var out record
	if err := GetJSON(ctx, store, "interest", &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}

	// Corrupt stored value surfaces as an error, not a panic.
	if err := store.Set(ctx, "corrupt", []byte("{not json")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := GetJSON(ctx, store, "corrupt", &out); err == nil {
		t.Error("expected error for corrupt value")
	}
}
