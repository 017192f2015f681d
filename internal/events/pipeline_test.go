// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/consent"
	"github.com/prakritilabs/vedalytics/internal/contentperf"
	"github.com/prakritilabs/vedalytics/internal/identity"
	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/leadscore"
	"github.com/prakritilabs/vedalytics/internal/segment"
)

type recordingSink struct {
	mu       sync.Mutex
	payloads []Payload
}

func (s *recordingSink) Forward(_ context.Context, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	return nil
}

func (s *recordingSink) all() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Payload, len(s.payloads))
	copy(out, s.payloads)
	return out
}

type recordingCatalog struct {
	views        []string
	interactions []string
}

func (c *recordingCatalog) RecordView(_ context.Context, _, serviceID string) error {
	c.views = append(c.views, serviceID)
	return nil
}

func (c *recordingCatalog) RecordInteraction(_ context.Context, _, serviceID string, _ int) error {
	c.interactions = append(c.interactions, serviceID)
	return nil
}

type testRig struct {
	store    *kv.MemoryStore
	consent  *consent.Store
	identity *identity.Manager
	leads    *leadscore.Accumulator
	segments *segment.Engine
	content  *contentperf.Scorer
	catalog  *recordingCatalog
	sink     *recordingSink
	pipeline *Pipeline
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := zerolog.Nop()

	cs := consent.NewStore(store, nil, 1, logger)
	im := identity.NewManager(store, identity.DefaultSessionTimeout, logger)
	leads := leadscore.NewAccumulator(store, nil, logger)
	segments := segment.NewEngine(store, nil, leads, nil, logger)
	content := contentperf.NewScorer(store, logger)
	catalog := &recordingCatalog{}
	sink := &recordingSink{}

	return &testRig{
		store:    store,
		consent:  cs,
		identity: im,
		leads:    leads,
		segments: segments,
		content:  content,
		catalog:  catalog,
		sink:     sink,
		pipeline: NewPipeline(cs, im, leads, segments, content, catalog, sink, store, logger),
	}
}

func (r *testRig) grantAnalytics(t *testing.T, visitorID string) {
	t.Helper()
	if _, err := r.consent.AcceptAll(context.Background(), visitorID); err != nil {
		t.Fatalf("grant consent: %v", err)
	}
}

func TestTrack_ConsentDeniedHasZeroSideEffects(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)

	before := rig.store.Len()
	rig.pipeline.Track(ctx, "v1", PageView{Path: "/home"})

	if got := rig.store.Len(); got != before {
		t.Errorf("storage must be untouched: %d keys, had %d", got, before)
	}
	if got := len(rig.sink.all()); got != 0 {
		t.Errorf("sink must not be called, got %d payloads", got)
	}
	if got := rig.leads.Get(ctx, "v1"); got != 0 {
		t.Errorf("lead score must stay 0, got %d", got)
	}
}

func TestTrack_ErrorBypassesConsentGate(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)

	rig.pipeline.Track(ctx, "v1", Error{Message: "boom", Source: "app.js", Line: 12})

	payloads := rig.sink.all()
	if len(payloads) != 1 {
		t.Fatalf("error telemetry must be forwarded without consent, got %d", len(payloads))
	}
	if payloads[0].Category != "error" {
		t.Errorf("category = %s, want error", payloads[0].Category)
	}
	if payloads[0].SessionID != "" {
		t.Error("error events must not mint a session")
	}
	if payloads[0].VisitorDigest == "v1" {
		t.Error("raw visitor id must never leave the pipeline")
	}
}

func TestTrack_PageViewSideEffects(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", PageView{Path: "/home"})

	if got := rig.leads.Get(ctx, "v1"); got != leadscore.PointsPageView {
		t.Errorf("lead score = %d, want %d", got, leadscore.PointsPageView)
	}
	if got := rig.content.Get(ctx, "/home").PageViews; got != 1 {
		t.Errorf("content page views = %d, want 1", got)
	}

	session, created, err := rig.identity.GetOrCreateSession(ctx, "v1")
	if err != nil || created {
		t.Fatalf("session should already exist: created=%v err=%v", created, err)
	}
	data := rig.identity.SessionData(ctx, session.ID)
	if data.PageViews != 1 || data.Events != 1 {
		t.Errorf("session counters = %+v, want 1 page view, 1 event", data)
	}
}

func TestTrack_ServiceDetailView(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", PageView{Path: "/services/abhyanga", ServiceID: "abhyanga"})

	if got := rig.leads.Get(ctx, "v1"); got != leadscore.PointsServiceDetail {
		t.Errorf("lead score = %d, want %d", got, leadscore.PointsServiceDetail)
	}
	if got := rig.segments.Interests(ctx, "v1")["services"]; got != 1 {
		t.Errorf("services interest = %d, want 1", got)
	}
	if len(rig.catalog.views) != 1 || rig.catalog.views[0] != "abhyanga" {
		t.Errorf("catalog views = %v, want [abhyanga]", rig.catalog.views)
	}
	if len(rig.catalog.interactions) != 1 {
		t.Errorf("catalog interactions = %v, want one entry", rig.catalog.interactions)
	}
}

func TestTrack_FormLifecycleScoring(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Form{FormID: "booking", Action: FormStart})
	rig.pipeline.Track(ctx, "v1", Form{FormID: "booking", Action: FormField, Field: "email", Value: "a@b.com"})
	rig.pipeline.Track(ctx, "v1", Form{FormID: "booking", Action: FormSubmit})

	want := leadscore.PointsBookingStart + leadscore.PointsBookingComplete
	if got := rig.leads.Get(ctx, "v1"); got != want {
		t.Errorf("lead score = %d, want %d", got, want)
	}

	for _, p := range rig.sink.all() {
		if p.Meta == nil {
			continue
		}
		if v, ok := p.Meta["value"].(string); ok && strings.Contains(v, "a@b.com") {
			t.Error("form values must be sanitized before forwarding")
		}
	}
}

func TestTrack_ScrollWatermarkFiresOnce(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 80})
	if got := rig.leads.Get(ctx, "v1"); got != leadscore.PointsHighScroll {
		t.Fatalf("high scroll bonus once at crossing: score %d, want %d", got, leadscore.PointsHighScroll)
	}

	// Lower depth never re-fires, higher depth crosses only new thresholds.
	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 40})
	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 95})
	if got := rig.leads.Get(ctx, "v1"); got != leadscore.PointsHighScroll {
		t.Errorf("bonus must not repeat: score %d, want %d", got, leadscore.PointsHighScroll)
	}

	session, _, _ := rig.identity.GetOrCreateSession(ctx, "v1")
	if got := rig.identity.SessionData(ctx, session.ID).MaxScrollDepth; got != 95 {
		t.Errorf("max scroll depth = %d, want 95", got)
	}
}

func TestTrack_ScrollBelowWatermarkIsDropped(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 50})
	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 10})

	if got := len(rig.sink.all()); got != 1 {
		t.Errorf("regressed scroll must not reach the sink: %d payloads, want 1", got)
	}

	session, _, _ := rig.identity.GetOrCreateSession(ctx, "v1")
	if got := rig.identity.SessionData(ctx, session.ID).Events; got != 1 {
		t.Errorf("regressed scroll must not count: %d events, want 1", got)
	}
}

func TestTrack_PageExitLongSessionBonus(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", PageExit{Path: "/home", TimeOnPage: 30 * time.Second})
	if got := rig.leads.Get(ctx, "v1"); got != 0 {
		t.Errorf("short dwell must not score, got %d", got)
	}

	rig.pipeline.Track(ctx, "v1", PageExit{Path: "/home", TimeOnPage: 61 * time.Second})
	if got := rig.leads.Get(ctx, "v1"); got != leadscore.PointsLongSession {
		t.Errorf("long dwell bonus = %d, want %d", got, leadscore.PointsLongSession)
	}
}

func TestTrack_PageExitResetsWatermark(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 80})
	rig.pipeline.Track(ctx, "v1", PageExit{Path: "/home", TimeOnPage: time.Second})
	rig.pipeline.Track(ctx, "v1", Scroll{Path: "/home", Depth: 80})

	want := 2 * leadscore.PointsHighScroll
	if got := rig.leads.Get(ctx, "v1"); got != want {
		t.Errorf("fresh visit re-arms thresholds: score %d, want %d", got, want)
	}
}

func TestTrack_ChatHistorySanitizedAndCapped(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Chat{Message: "email me at a@b.com", FromUser: true})
	history := rig.pipeline.ChatHistory(ctx, "v1")
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if strings.Contains(history[0].Message, "a@b.com") {
		t.Error("stored chat message must be sanitized")
	}

	for i := 0; i < maxChatHistory+20; i++ {
		rig.pipeline.Track(ctx, "v1", Chat{Message: fmt.Sprintf("message %d", i), FromUser: true})
	}
	history = rig.pipeline.ChatHistory(ctx, "v1")
	if len(history) != maxChatHistory {
		t.Errorf("history length = %d, want cap %d", len(history), maxChatHistory)
	}
	if history[len(history)-1].Message != fmt.Sprintf("message %d", maxChatHistory+19) {
		t.Error("cap must retain the most recent messages")
	}
}

func TestTrack_ClickAllowList(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Click{Tag: "div", Path: "/home"})
	if got := len(rig.sink.all()); got != 0 {
		t.Fatalf("non-interactive click must be dropped, got %d forwards", got)
	}

	rig.pipeline.Track(ctx, "v1", Click{Tag: "button", ID: "book-now", Path: "/home"})
	rig.pipeline.Track(ctx, "v1", Click{Tag: "div", OptIn: true, Path: "/home"})
	if got := len(rig.sink.all()); got != 2 {
		t.Errorf("allow-listed and opted-in clicks must forward, got %d", got)
	}
}

func TestTrack_ToolCompletionMarksInterest(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	rig.pipeline.Track(ctx, "v1", Tool{ToolID: "dosha-quiz", Completed: false})
	if got := rig.leads.Get(ctx, "v1"); got != 0 {
		t.Errorf("incomplete tool must not score, got %d", got)
	}

	rig.pipeline.Track(ctx, "v1", Tool{ToolID: "dosha-quiz", Completed: true})
	if got := rig.leads.Get(ctx, "v1"); got != leadscore.PointsToolCompletion {
		t.Errorf("tool completion score = %d, want %d", got, leadscore.PointsToolCompletion)
	}
	if !rig.segments.Has(ctx, "v1", segment.ToolUser) {
		t.Error("tool completion must apply the tool_user segment")
	}
}

func TestTrack_EngagementTickAccrues(t *testing.T) {
	ctx := context.Background()
	rig := newRig(t)
	rig.grantAnalytics(t, "v1")

	for i := 0; i < 3; i++ {
		rig.pipeline.Track(ctx, "v1", EngagementTick{Interval: time.Second})
	}

	session, _, _ := rig.identity.GetOrCreateSession(ctx, "v1")
	if got := rig.identity.SessionData(ctx, session.ID).EngagementTime; got != 3000 {
		t.Errorf("engagement time = %dms, want 3000", got)
	}
}
