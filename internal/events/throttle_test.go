// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestThrottle_DropsIntermediateCalls(t *testing.T) {
	var fired atomic.Int32
	th := NewThrottle(50*time.Millisecond, func() { fired.Add(1) })
	defer th.Close()

	for i := 0; i < 10; i++ {
		th.Call()
	}
	if got := fired.Load(); got != 1 {
		t.Fatalf("burst should fire immediately once, got %d", got)
	}

	// The trailing invocation represents the latest dropped call.
	deadline := time.Now().Add(time.Second)
	for fired.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fired.Load(); got != 2 {
		t.Errorf("want exactly one trailing fire, total %d", got)
	}
}

func TestThrottle_CloseCancelsTrailing(t *testing.T) {
	var fired atomic.Int32
	th := NewThrottle(50*time.Millisecond, func() { fired.Add(1) })

	th.Call()
	th.Call()
	th.Close()

	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("close must cancel the pending trailing fire, got %d", got)
	}

	th.Call()
	if got := fired.Load(); got != 1 {
		t.Errorf("calls after close must be no-ops, got %d", got)
	}
}

func TestDebounce_LatestCallWins(t *testing.T) {
	var fired atomic.Int32
	db := NewDebounce(40*time.Millisecond, func() { fired.Add(1) })
	defer db.Close()

	db.Call()
	time.Sleep(10 * time.Millisecond)
	db.Call()
	time.Sleep(10 * time.Millisecond)
	db.Call()

	if got := fired.Load(); got != 0 {
		t.Fatalf("must not fire before the burst settles, got %d", got)
	}

	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("burst must collapse to one fire, got %d", got)
	}
}

func TestDebounce_CloseCancelsPending(t *testing.T) {
	var fired atomic.Int32
	db := NewDebounce(30*time.Millisecond, func() { fired.Add(1) })

	db.Call()
	db.Close()

	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("close must cancel the scheduled fire, got %d", got)
	}
}
