// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package events

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle serializes bursts of high-frequency signals (scroll, touch
// move) to a bounded rate. Calls beyond the rate are not queued: the
// latest call wins and fires once as a trailing invocation, dropping
// everything in between.
type Throttle struct {
	limiter *rate.Limiter
	fn      func()

	mu       sync.Mutex
	trailing *time.Timer
	interval time.Duration
	closed   bool
}

// NewThrottle wraps fn so it runs at most once per interval.
func NewThrottle(interval time.Duration, fn func()) *Throttle {
	return &Throttle{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		fn:       fn,
		interval: interval,
	}
}

// Call invokes the wrapped function if the limiter allows; otherwise it
// reschedules the trailing invocation, cancelling the previous handle.
func (t *Throttle) Call() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if t.limiter.Allow() {
		if t.trailing != nil {
			t.trailing.Stop()
			t.trailing = nil
		}
		t.mu.Unlock()
		t.fn()
		return
	}
	if t.trailing != nil {
		t.trailing.Stop()
	}
	t.trailing = time.AfterFunc(t.interval, func() {
		t.mu.Lock()
		closed := t.closed
		t.trailing = nil
		t.mu.Unlock()
		if !closed {
			t.fn()
		}
	})
	t.mu.Unlock()
}

// Close cancels any pending trailing invocation. Further calls are
// no-ops.
func (t *Throttle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.trailing != nil {
		t.trailing.Stop()
		t.trailing = nil
	}
}

// Debounce delays the wrapped function until calls stop arriving for
// the configured duration. Each call cancels the previously scheduled
// handle, so only the final call in a burst fires.
type Debounce struct {
	fn    func()
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewDebounce wraps fn with the given settle delay.
func NewDebounce(delay time.Duration, fn func()) *Debounce {
	return &Debounce{fn: fn, delay: delay}
}

// Call schedules the wrapped function, replacing any pending schedule.
func (d *Debounce) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		closed := d.closed
		d.timer = nil
		d.mu.Unlock()
		if !closed {
			d.fn()
		}
	})
}

// Close cancels the pending schedule. Further calls are no-ops.
func (d *Debounce) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
