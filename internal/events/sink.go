// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package events

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Payload is the normalized event forwarded to the external collector.
// Visitor identity travels as a digest, never the raw id.
type Payload struct {
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	Action        string         `json:"action"`
	Label         string         `json:"label,omitempty"`
	Value         float64        `json:"value,omitempty"`
	VisitorDigest string         `json:"visitor_digest"`
	SessionID     string         `json:"session_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// Sink receives normalized event payloads. The pipeline never depends
// on sink availability: a nil sink is a silent no-op and forward
// failures only increment a counter.
type Sink interface {
	Forward(ctx context.Context, p Payload) error
}

// HTTPSink posts payloads to an external collector behind a circuit
// breaker, so a dead collector costs one failed request per probe
// instead of one per event.
type HTTPSink struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[any]
	logger  zerolog.Logger
}

// NewHTTPSink creates a collector client for the given endpoint.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHTTPSink(url string, timeout time.Duration, logger zerolog.Logger) *HTTPSink {
	log := logger.With().Str("component", "telemetry").Logger()
	settings := gobreaker.Settings{
		Name:    "telemetry-collector",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("telemetry breaker state changed")
		},
	}
	return &HTTPSink{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  log,
	}
}

// Forward posts the payload as JSON. An open breaker or a non-2xx
// response is returned as an error for the caller to count and drop.
func (s *HTTPSink) Forward(ctx context.Context, p Payload) error {
	_, err := s.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("post event: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("collector returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
