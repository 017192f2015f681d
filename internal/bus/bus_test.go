// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := b.Subscribe(ctx, TopicLeadScoreChanged)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	payload := map[string]int{"total": 26, "delta": 25}
	if err := b.Publish(TopicLeadScoreChanged, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-messages:
		var got map[string]int
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got["total"] != 26 || got["delta"] != 25 {
			t.Errorf("unexpected payload: %v", got)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consent, err := b.Subscribe(ctx, TopicConsentChanged)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := b.Publish(TopicSegmentAdded, map[string]string{"segment": "tool_user"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-consent:
		t.Errorf("consent subscriber received segment broadcast: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
		// Expected: nothing delivered across topics.
	}
}
