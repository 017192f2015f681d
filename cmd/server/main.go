// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package main is the entry point for the Vedalytics server.
//
// Vedalytics is a privacy-first behavioral analytics and personalization
// engine for wellness sites. It tracks visitor behavior behind an explicit
// consent gate, derives lead scores and audience segments, assigns A/B
// variants, follows booking funnels, and serves personalized service
// recommendations.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml, env)
//  2. Storage: BadgerDB key-value store (or in-memory for ephemeral runs)
//  3. Message bus: Watermill gochannel pub/sub for engine events
//  4. Engine components: consent, identity, lead scoring, segmentation,
//     A/B tests, funnel tracking, content performance, recommendations,
//     data governance, and the event pipeline
//  5. WebSocket hub and bus relay: real-time updates to connected clients
//  6. HTTP server: REST API plus the /metrics endpoint
//
// All long-running services run under a suture supervisor tree.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests within the shutdown
// timeout, then closes the bus and the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prakritilabs/vedalytics/internal/abtest"
	"github.com/prakritilabs/vedalytics/internal/api"
	"github.com/prakritilabs/vedalytics/internal/bus"
	"github.com/prakritilabs/vedalytics/internal/config"
	"github.com/prakritilabs/vedalytics/internal/consent"
	"github.com/prakritilabs/vedalytics/internal/contentperf"
	"github.com/prakritilabs/vedalytics/internal/events"
	"github.com/prakritilabs/vedalytics/internal/funnel"
	"github.com/prakritilabs/vedalytics/internal/governance"
	"github.com/prakritilabs/vedalytics/internal/identity"
	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/leadscore"
	"github.com/prakritilabs/vedalytics/internal/logging"
	"github.com/prakritilabs/vedalytics/internal/recommend"
	"github.com/prakritilabs/vedalytics/internal/segment"
	"github.com/prakritilabs/vedalytics/internal/supervisor"
	"github.com/prakritilabs/vedalytics/internal/supervisor/services"
	"github.com/prakritilabs/vedalytics/internal/websocket"
)

// identitySignals feeds visit count and session engagement from the
// identity manager into the segmentation engine.
type identitySignals struct {
	identity *identity.Manager
}

func (s identitySignals) Signals(ctx context.Context, visitorID string) segment.Signals {
	visitor, err := s.identity.GetVisitor(ctx, visitorID)
	if err != nil {
		return segment.Signals{}
	}
	session, _, err := s.identity.GetOrCreateSession(ctx, visitorID)
	if err != nil {
		return segment.Signals{VisitCount: visitor.VisitCount}
	}
	data := s.identity.SessionData(ctx, session.ID)
	return segment.Signals{
		VisitCount:      visitor.VisitCount,
		SessionEngageMs: data.EngagementTime,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger := logging.Logger()

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("in_memory", cfg.Storage.InMemory).
		Msg("Starting Vedalytics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === STORAGE ===

	var store kv.Store
	if cfg.Storage.InMemory {
		store = kv.NewMemoryStore()
		logging.Info().Msg("Using in-memory store")
	} else {
		badgerStore, err := kv.OpenBadger(cfg.Storage.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open store")
		}
		defer func() {
			if err := badgerStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing store")
			}
		}()
		store = badgerStore
		logging.Info().Str("path", cfg.Storage.Path).Msg("BadgerDB store opened")
	}

	// Session scope: funnel and chat conversation state is intentionally
	// volatile and never outlives the process.
	sessionStore := kv.NewMemoryStore()

	// === MESSAGE BUS ===

	engineBus := bus.New(logger)
	defer func() {
		if err := engineBus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing bus")
		}
	}()

	// === ENGINE COMPONENTS ===

	consentStore := consent.NewStore(store, engineBus, cfg.Consent.Version, logger)
	identityMgr := identity.NewManager(store, cfg.Session.Timeout, logger)
	leads := leadscore.NewAccumulator(store, engineBus, logger)
	segments := segment.NewEngine(store, engineBus, leads, identitySignals{identity: identityMgr}, logger)
	abtests := abtest.NewStore(store, engineBus, cfg.ABTests.Tests, cfg.ABTests.Seed, logger)
	funnels := funnel.NewTracker(sessionStore, engineBus, segments, logger)
	defer funnels.Close()
	content := contentperf.NewScorer(store, logger)
	recommender := recommend.NewEngine(store, segments, nil, logger)
	gov := governance.NewManager(store, cfg.Retention.AuditLogCap, logger)
	abtests.SetRegistrar(gov)

	var sink events.Sink
	if cfg.Telemetry.Enabled {
		sink = events.NewHTTPSink(cfg.Telemetry.CollectorURL, cfg.Telemetry.Timeout, logger)
		logging.Info().Str("collector", cfg.Telemetry.CollectorURL).Msg("Telemetry forwarding enabled")
	} else {
		logging.Info().Msg("Telemetry forwarding disabled")
	}

	pipeline := events.NewPipeline(
		consentStore,
		identityMgr,
		leads,
		segments,
		content,
		recommender,
		sink,
		sessionStore,
		logger,
	)

	// === REAL-TIME LAYER ===

	hub := websocket.NewHub()
	relay := websocket.NewRelay(engineBus, hub, logger)

	// === HTTP SERVER ===

	apiServer := api.NewServer(cfg.Server, api.Deps{
		Consent:    consentStore,
		Identity:   identityMgr,
		Leads:      leads,
		Segments:   segments,
		ABTests:    abtests,
		Funnel:     funnels,
		Content:    content,
		Recommend:  recommender,
		Governance: gov,
		Pipeline:   pipeline,
		Hub:        hub,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewRelayService(relay))
	tree.AddMessagingService(services.NewJanitorService(gov, cfg.Retention.CleanupInterval, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
