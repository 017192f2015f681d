// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package api exposes the analytics engine over HTTP: event ingestion,
// consent management, A/B assignment, funnel tracking, recommendations,
// sentiment analysis, and the data-subject privacy operations.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/abtest"
	"github.com/prakritilabs/vedalytics/internal/config"
	"github.com/prakritilabs/vedalytics/internal/consent"
	"github.com/prakritilabs/vedalytics/internal/contentperf"
	"github.com/prakritilabs/vedalytics/internal/events"
	"github.com/prakritilabs/vedalytics/internal/funnel"
	"github.com/prakritilabs/vedalytics/internal/governance"
	"github.com/prakritilabs/vedalytics/internal/identity"
	"github.com/prakritilabs/vedalytics/internal/leadscore"
	"github.com/prakritilabs/vedalytics/internal/metrics"
	"github.com/prakritilabs/vedalytics/internal/recommend"
	"github.com/prakritilabs/vedalytics/internal/segment"
	"github.com/prakritilabs/vedalytics/internal/websocket"
)

var validate = validator.New()

// Server holds the wired engine components behind the HTTP surface.
type Server struct {
	cfg        config.ServerConfig
	consent    *consent.Store
	identity   *identity.Manager
	leads      *leadscore.Accumulator
	segments   *segment.Engine
	abtests    *abtest.Store
	funnel     *funnel.Tracker
	content    *contentperf.Scorer
	recommend  *recommend.Engine
	governance *governance.Manager
	pipeline   *events.Pipeline
	hub        *websocket.Hub
	logger     zerolog.Logger
	upgrader   gorillaws.Upgrader
}

// Deps bundles the constructed components the server serves.
type Deps struct {
	Consent    *consent.Store
	Identity   *identity.Manager
	Leads      *leadscore.Accumulator
	Segments   *segment.Engine
	ABTests    *abtest.Store
	Funnel     *funnel.Tracker
	Content    *contentperf.Scorer
	Recommend  *recommend.Engine
	Governance *governance.Manager
	Pipeline   *events.Pipeline
	Hub        *websocket.Hub
}

// NewServer creates the HTTP surface over explicitly injected
// components.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewServer(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		consent:    deps.Consent,
		identity:   deps.Identity,
		leads:      deps.Leads,
		segments:   deps.Segments,
		abtests:    deps.ABTests,
		funnel:     deps.Funnel,
		content:    deps.Content,
		recommend:  deps.Recommend,
		governance: deps.Governance,
		pipeline:   deps.Pipeline,
		hub:        deps.Hub,
		logger:     logger.With().Str("component", "api").Logger(),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
	}
}

// Routes builds the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.instrument)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		rateReqs, rateWindow := s.cfg.RateLimitReqs, s.cfg.RateLimitWindow
		if rateReqs > 0 {
			r.Use(httprate.LimitByIP(rateReqs, rateWindow))
		}

		r.Get("/health", s.handleHealth)
		r.Get("/live", s.handleWebSocket)

		r.Post("/visitors", s.handleVisitorBootstrap)
		r.Post("/events", s.handleTrackEvent)

		r.Route("/consent", func(r chi.Router) {
			r.Get("/", s.handleGetConsent)
			r.Post("/", s.handleUpdateConsent)
			r.Delete("/", s.handleRevokeConsent)
		})

		r.Get("/abtests/{testID}/variant", s.handleGetVariant)

		r.Route("/funnel", func(r chi.Router) {
			r.Post("/step", s.handleFunnelStep)
			r.Post("/complete", s.handleFunnelComplete)
			r.Post("/abandon", s.handleFunnelAbandon)
			r.Get("/", s.handleGetFunnel)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", s.handleRecommendations)
			r.Get("/similar/{serviceID}", s.handleSimilar)
			r.Get("/trending", s.handleTrending)
		})
		r.Post("/dosha", s.handleSetDosha)

		r.Post("/sentiment/analyze", s.handleAnalyzeSentiment)
		r.Post("/sentiment/batch", s.handleAnalyzeSentimentBatch)
		r.Post("/sentiment/trend", s.handleSentimentTrend)

		r.Get("/leadscore", s.handleGetLeadScore)
		r.Get("/segments", s.handleGetSegments)
		r.Get("/content", s.handleContentPerformance)

		r.Route("/privacy", func(r chi.Router) {
			r.Get("/export", s.handleExportData)
			r.Delete("/data", s.handleDeleteData)
		})
	})

	return r
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket upgrades the connection and registers it with the
// live broadcast hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := websocket.NewClient(s.hub, conn)
	s.hub.Register <- client
	client.Start()
}
