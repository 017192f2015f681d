// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package websocket

import (
	"context"
	"testing"
	"time"
)

func newTestClient() *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		send: make(chan Message, 4),
	}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	client := newTestClient()
	hub.Register <- client

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(MessageTypeSegmentAdded, map[string]string{"segment": "tool_user"})

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeSegmentAdded {
			t.Errorf("message type = %s, want %s", msg.Type, MessageTypeSegmentAdded)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast")
	}

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancel")
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	client := &Client{id: clientIDCounter.Add(1), send: make(chan Message)}
	hub.Register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	// Unbuffered send channel with no reader: the first delivery drops
	// the client instead of blocking the hub.
	hub.Broadcast(MessageTypePing, nil)
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	client := newTestClient()
	hub.Register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	<-done

	select {
	case _, open := <-client.send:
		if open {
			t.Error("send channel should be closed after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
