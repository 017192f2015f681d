// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package consent

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/kv"
)

func newTestStore() (*Store, *kv.MemoryStore) {
	mem := kv.NewMemoryStore()
	return NewStore(mem, nil, 1, zerolog.Nop()), mem
}

func TestGet_DefaultsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	state := store.Get(ctx, "v1")
	if !state.Essential {
		t.Error("essential must always be true")
	}
	if state.Analytics || state.Marketing || state.Personalization {
		t.Errorf("non-essential categories must default false: %+v", state)
	}
}

func TestUpdate_MergesAndStamps(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	yes := true
	state, err := store.Update(ctx, "v1", Update{Analytics: &yes})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !state.Analytics {
		t.Error("analytics not granted")
	}
	if state.Marketing {
		t.Error("marketing should stay false")
	}
	if state.Timestamp.IsZero() {
		t.Error("update must restamp timestamp")
	}
	if state.Version != 1 {
		t.Errorf("update must stamp current version, got %d", state.Version)
	}

	// Partial update keeps earlier grants.
	no := false
	state, err = store.Update(ctx, "v1", Update{Marketing: &no})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !state.Analytics {
		t.Error("partial update dropped earlier analytics grant")
	}
}

func TestVersionMismatch_TreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()

	old := NewStore(mem, nil, 1, zerolog.Nop())
	if _, err := old.AcceptAll(ctx, "v1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	current := NewStore(mem, nil, 2, zerolog.Nop())
	state := current.Get(ctx, "v1")
	if state.Analytics {
		t.Error("version-mismatched record must read as absent consent")
	}
	if !current.HasConsentFor(ctx, "v1", CategoryEssential) {
		t.Error("essential consent must survive version mismatch")
	}
}

func TestRevoke_RemovesRecord(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()

	if _, err := store.AcceptAll(ctx, "v1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := store.Revoke(ctx, "v1"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if mem.Len() != 0 {
		t.Error("revoke must remove the persisted record")
	}
	if store.HasConsentFor(ctx, "v1", CategoryAnalytics) {
		t.Error("analytics consent must be gone after revoke")
	}
}

func TestHasConsentFor(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	if store.HasConsentFor(ctx, "v1", CategoryAnalytics) {
		t.Error("analytics must be denied by default")
	}
	if !store.HasConsentFor(ctx, "v1", CategoryEssential) {
		t.Error("essential must always be granted")
	}

	yes := true
	if _, err := store.Update(ctx, "v1", Update{Personalization: &yes}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !store.HasConsentFor(ctx, "v1", CategoryPersonalization) {
		t.Error("personalization grant not visible")
	}
	if store.HasConsentFor(ctx, "v1", Category("unknown")) {
		t.Error("unknown category must be denied")
	}
}

func TestSubscribe_NotifyAndIdempotentUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	var calls int
	var last State
	unsubscribe := store.Subscribe(func(s State) {
		calls++
		last = s
	})

	if _, err := store.AcceptAll(ctx, "v1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
	if !last.Analytics || !last.Marketing || !last.Personalization {
		t.Errorf("listener must receive the full new state: %+v", last)
	}

	unsubscribe()
	unsubscribe() // must be safe to call twice

	if _, err := store.RejectAll(ctx, "v1"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("unsubscribed listener still notified, calls = %d", calls)
	}
}
