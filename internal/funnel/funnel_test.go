// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package funnel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/kv"
)

type recordingConverter struct {
	calls []string
}

func (c *recordingConverter) MarkConverted(_ context.Context, visitorID string) error {
	c.calls = append(c.calls, visitorID)
	return nil
}

func newTestTracker() (*Tracker, *recordingConverter, *time.Time) {
	converter := &recordingConverter{}
	tracker := NewTracker(kv.NewMemoryStore(), nil, converter, zerolog.Nop())
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tracker.SetNow(func() time.Time { return current })
	return tracker, converter, &current
}

func TestTrackStep_AutoStartAndBackfill(t *testing.T) {
	ctx := context.Background()
	tracker, _, now := newTestTracker()
	defer tracker.Close()

	if err := tracker.TrackStep(ctx, "v1", "s1", "service_selection"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}

	*now = now.Add(500 * time.Millisecond)
	if err := tracker.TrackStep(ctx, "v1", "s1", "date_selection"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}

	f, err := tracker.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(f.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(f.Steps))
	}
	if f.Steps[0].TimeSpent != 500*time.Millisecond {
		t.Errorf("previous step dwell = %v, want 500ms", f.Steps[0].TimeSpent)
	}
	if f.Steps[1].TimeSpent != 0 {
		t.Errorf("latest step must have no dwell yet, got %v", f.Steps[1].TimeSpent)
	}
}

func TestTrackStep_DuplicatesAcceptedAsIs(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker()
	defer tracker.Close()

	for _, name := range []string{"a", "a", "c", "b"} {
		if err := tracker.TrackStep(ctx, "v1", "s1", name); err != nil {
			t.Fatalf("track step failed: %v", err)
		}
	}
	f, err := tracker.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(f.Steps) != 4 {
		t.Errorf("steps must be appended in call order, got %d", len(f.Steps))
	}
}

func TestComplete_TerminalAndConversionSignal(t *testing.T) {
	ctx := context.Background()
	tracker, converter, now := newTestTracker()
	defer tracker.Close()

	if err := tracker.TrackStep(ctx, "v1", "s1", "service_selection"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}
	*now = now.Add(2 * time.Minute)

	form := map[string]string{
		"service": "abhyanga",
		"date":    "2026-03-10",
		"time":    "10:00",
		"name":    "A. Person",
		"phone":   "9876543210",
	}
	if err := tracker.Complete(ctx, "v1", form); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	f, err := tracker.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("completed funnel must stay readable before the clear delay: %v", err)
	}
	if !f.Completed {
		t.Error("funnel not marked completed")
	}
	if f.CompletionTime != 2*time.Minute {
		t.Errorf("completion time = %v, want 2m", f.CompletionTime)
	}
	if f.Steps[len(f.Steps)-1].Name != StepSubmit {
		t.Error("submit step not appended")
	}

	// Form data stripped to the allow list.
	if _, ok := f.FormData["name"]; ok {
		t.Error("form data retained a disallowed field")
	}
	if _, ok := f.FormData["phone"]; ok {
		t.Error("form data retained a phone number")
	}
	if f.FormData["service"] != "abhyanga" {
		t.Errorf("allow-listed field lost: %v", f.FormData)
	}

	if len(converter.calls) != 1 || converter.calls[0] != "v1" {
		t.Errorf("conversion signal calls = %v", converter.calls)
	}

	// Second complete is a no-op.
	if err := tracker.Complete(ctx, "v1", nil); err != nil {
		t.Fatalf("repeat complete failed: %v", err)
	}
	if len(converter.calls) != 1 {
		t.Error("repeat complete re-signalled conversion")
	}
}

func TestComplete_ClearsAfterDelay(t *testing.T) {
	ctx := context.Background()
	converter := &recordingConverter{}
	tracker := NewTracker(kv.NewMemoryStore(), nil, converter, zerolog.Nop())
	defer tracker.Close()

	if err := tracker.TrackStep(ctx, "v1", "s1", "service_selection"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}
	if err := tracker.Complete(ctx, "v1", nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Wait past the clear delay for the timer to fire.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := tracker.Get(ctx, "v1"); errors.Is(err, kv.ErrKeyNotFound) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("completed funnel not cleared after delay")
}

func TestAbandon(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker()
	defer tracker.Close()

	// Never started: no-op.
	if err := tracker.Abandon(ctx, "v1", "navigated_away"); err != nil {
		t.Fatalf("abandon of absent funnel must be a no-op: %v", err)
	}

	if err := tracker.TrackStep(ctx, "v1", "s1", "service_selection"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}
	if err := tracker.TrackStep(ctx, "v1", "s1", "date_selection"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}
	if err := tracker.Abandon(ctx, "v1", "navigated_away"); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}

	f, err := tracker.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if f.AbandonmentPoint != "date_selection" {
		t.Errorf("abandonment point = %q, want date_selection", f.AbandonmentPoint)
	}

	// Completed funnels cannot be abandoned.
	if err := tracker.Complete(ctx, "v1", nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := tracker.Abandon(ctx, "v1", "late"); err != nil {
		t.Fatalf("abandon after complete must be a no-op: %v", err)
	}
}

func TestStart_FreshInstanceAfterTerminal(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker()
	defer tracker.Close()

	if err := tracker.TrackStep(ctx, "v1", "s1", "a"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}
	if err := tracker.Complete(ctx, "v1", nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Tracking after completion starts a fresh instance.
	if err := tracker.TrackStep(ctx, "v1", "s2", "a"); err != nil {
		t.Fatalf("track step failed: %v", err)
	}
	f, err := tracker.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if f.Completed || len(f.Steps) != 1 || f.SessionID != "s2" {
		t.Errorf("expected fresh instance, got %+v", f)
	}
}
