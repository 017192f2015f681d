// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package events is the single ingress for behavioral tracking. Every
// call except error telemetry passes the analytics consent gate; denied
// calls are permanently dropped with zero side effects, never buffered
// for replay. Side effects run synchronously on the calling goroutine,
// and no failure in one signal may prevent unrelated signals from
// being recorded.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/consent"
	"github.com/prakritilabs/vedalytics/internal/contentperf"
	"github.com/prakritilabs/vedalytics/internal/identity"
	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/leadscore"
	"github.com/prakritilabs/vedalytics/internal/metrics"
	"github.com/prakritilabs/vedalytics/internal/segment"
)

// scrollThresholds are the depth percentages that each fire one
// engagement forward, exactly once per page visit.
var scrollThresholds = []int{25, 50, 75, 90, 100}

// highScrollThreshold is the depth at which the one-time high-scroll
// lead bonus applies.
const highScrollThreshold = 75

// longSessionCutoff is the dwell time beyond which page exit grants the
// long-session lead bonus.
const longSessionCutoff = 60 * time.Second

const maxChatHistory = 100

// clickTagAllowList limits click tracking to interactive elements;
// everything else needs an explicit opt-in.
var clickTagAllowList = map[string]struct{}{
	"a":        {},
	"button":   {},
	"input":    {},
	"select":   {},
	"textarea": {},
}

// ChatEntry is one retained chat message, already sanitized.
type ChatEntry struct {
	Message   string    `json:"message"`
	FromUser  bool      `json:"from_user"`
	Timestamp time.Time `json:"timestamp"`
}

// CatalogRecorder receives service view and interaction signals for
// recommendation state. Implemented by the recommendation engine.
type CatalogRecorder interface {
	RecordView(ctx context.Context, visitorID, serviceID string) error
	RecordInteraction(ctx context.Context, visitorID, serviceID string, weight int) error
}

// Pipeline wires tracked events into session counters, lead scoring,
// segmentation, content performance, and the telemetry sink.
type Pipeline struct {
	consent  *consent.Store
	identity *identity.Manager
	leads    *leadscore.Accumulator
	segments *segment.Engine
	content  *contentperf.Scorer
	catalog  CatalogRecorder
	sink     Sink

	// sessions is the session-scoped store; it holds only the volatile
	// chat history.
	sessions kv.Store

	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	watermarks map[string]*watermark
}

// watermark tracks the maximum scroll depth reached on one page visit.
// It only rises; each threshold fires at most once.
type watermark struct {
	max   int
	fired map[int]struct{}
}

// NewPipeline assembles the event pipeline. Sink and catalog may be
// nil, in which case forwarding and catalog recording are no-ops.
// sessions is the session-scoped store for chat state.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPipeline(
	cs *consent.Store,
	im *identity.Manager,
	leads *leadscore.Accumulator,
	segments *segment.Engine,
	content *contentperf.Scorer,
	catalog CatalogRecorder,
	sink Sink,
	sessions kv.Store,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		consent:    cs,
		identity:   im,
		leads:      leads,
		segments:   segments,
		content:    content,
		catalog:    catalog,
		sink:       sink,
		sessions:   sessions,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		now:        time.Now,
		watermarks: make(map[string]*watermark),
	}
}

// SetNow overrides the clock for tests.
func (p *Pipeline) SetNow(now func() time.Time) { p.now = now }

func chatKey(visitorID string) string { return "chat:" + visitorID }

// Track ingests one event. It never returns an error: every fallible
// side effect degrades to "nothing recorded this time".
func (p *Pipeline) Track(ctx context.Context, visitorID string, ev Event) {
	kind := ev.EventKind()

	if kind != KindError && !p.consent.HasConsentFor(ctx, visitorID, consent.CategoryAnalytics) {
		metrics.EventsDroppedConsent.WithLabelValues(string(kind)).Inc()
		return
	}

	if click, ok := ev.(Click); ok && !clickAllowed(click) {
		return
	}

	// A scroll that does not raise the per-page watermark is noise:
	// nothing downstream may see it twice.
	if scroll, ok := ev.(Scroll); ok && !p.advanceWatermark(ctx, visitorID, scroll) {
		return
	}

	metrics.EventsTracked.WithLabelValues(string(kind)).Inc()

	var sessionID string
	if kind != KindError {
		sessionID = p.touchSession(ctx, visitorID)
		p.bumpCounters(ctx, sessionID, ev)
	}

	p.applyEffects(ctx, visitorID, ev)
	p.forward(ctx, visitorID, sessionID, ev)
}

// touchSession resolves the current session, minting one on expiry, and
// refreshes its activity. A fresh session on a returning visitor grants
// the return-visit bonus.
func (p *Pipeline) touchSession(ctx context.Context, visitorID string) string {
	session, created, err := p.identity.GetOrCreateSession(ctx, visitorID)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("pipeline").Inc()
		p.logger.Warn().Err(err).Str("visitor", visitorID).Msg("session resolve failed")
		return ""
	}
	if created {
		if visitor, err := p.identity.GetVisitor(ctx, visitorID); err == nil && visitor.VisitCount > 1 {
			p.addScore(ctx, visitorID, leadscore.PointsReturnVisit)
		}
		p.updateSegments(ctx, visitorID)
	} else if err := p.identity.Touch(ctx, visitorID); err != nil {
		p.logger.Warn().Err(err).Str("visitor", visitorID).Msg("session touch failed")
	}
	return session.ID
}

func (p *Pipeline) bumpCounters(ctx context.Context, sessionID string, ev Event) {
	if sessionID == "" {
		return
	}
	err := p.identity.UpdateSessionData(ctx, sessionID, func(d *identity.SessionData) {
		d.Events++
		switch e := ev.(type) {
		case PageView:
			d.PageViews++
		case EngagementTick:
			d.EngagementTime += e.Interval.Milliseconds()
		case Scroll:
			if e.Depth > d.MaxScrollDepth {
				d.MaxScrollDepth = e.Depth
			}
		}
	})
	if err != nil {
		metrics.StorageErrors.WithLabelValues("pipeline").Inc()
		p.logger.Warn().Err(err).Msg("session counter update failed")
	}
}

func (p *Pipeline) applyEffects(ctx context.Context, visitorID string, ev Event) {
	switch e := ev.(type) {
	case PageView:
		if err := p.content.StartTracking(ctx, e.Path); err != nil {
			p.logger.Warn().Err(err).Str("path", e.Path).Msg("content tracking start failed")
		}
		if e.ServiceID != "" {
			p.addScore(ctx, visitorID, leadscore.PointsServiceDetail)
			p.trackInterest(ctx, visitorID, "services")
			p.recordCatalogView(ctx, visitorID, e.ServiceID)
		} else {
			p.addScore(ctx, visitorID, leadscore.PointsPageView)
		}
		p.updateSegments(ctx, visitorID)

	case Form:
		switch e.Action {
		case FormStart:
			p.addScore(ctx, visitorID, leadscore.PointsBookingStart)
		case FormSubmit:
			p.addScore(ctx, visitorID, leadscore.PointsBookingComplete)
			p.updateSegments(ctx, visitorID)
		}

	case Chat:
		p.appendChat(ctx, visitorID, e)
		p.addScore(ctx, visitorID, leadscore.PointsChatMessage)

	case Tool:
		if e.Completed {
			p.addScore(ctx, visitorID, leadscore.PointsToolCompletion)
			p.trackInterest(ctx, visitorID, "tools")
			p.updateSegments(ctx, visitorID)
		}

	case EngagementTick:
		p.updateSegments(ctx, visitorID)

	case PageExit:
		err := p.content.EndTracking(ctx, e.Path, e.TimeOnPage, e.ScrollDepth, e.HadEngagement, e.Converted)
		if err != nil {
			p.logger.Warn().Err(err).Str("path", e.Path).Msg("content tracking end failed")
		}
		if e.TimeOnPage > longSessionCutoff {
			p.addScore(ctx, visitorID, leadscore.PointsLongSession)
		}
		p.clearWatermark(visitorID, e.Path)
	}
}

// advanceWatermark raises the per-page max depth and fires each crossed
// threshold exactly once. It reports whether the depth rose; re-entering
// a lower depth never fires again.
func (p *Pipeline) advanceWatermark(ctx context.Context, visitorID string, e Scroll) bool {
	key := visitorID + "|" + e.Path

	p.mu.Lock()
	wm, ok := p.watermarks[key]
	if !ok {
		wm = &watermark{fired: make(map[int]struct{})}
		p.watermarks[key] = wm
	}
	if e.Depth <= wm.max {
		p.mu.Unlock()
		return false
	}
	wm.max = e.Depth
	var crossed []int
	for _, threshold := range scrollThresholds {
		if e.Depth >= threshold {
			if _, done := wm.fired[threshold]; !done {
				wm.fired[threshold] = struct{}{}
				crossed = append(crossed, threshold)
			}
		}
	}
	p.mu.Unlock()

	for _, threshold := range crossed {
		if threshold == highScrollThreshold {
			p.addScore(ctx, visitorID, leadscore.PointsHighScroll)
		}
	}
	return true
}

func (p *Pipeline) clearWatermark(visitorID, path string) {
	p.mu.Lock()
	delete(p.watermarks, visitorID+"|"+path)
	p.mu.Unlock()
}

func (p *Pipeline) appendChat(ctx context.Context, visitorID string, e Chat) {
	history := p.ChatHistory(ctx, visitorID)
	history = append(history, ChatEntry{
		Message:   SanitizePII(e.Message),
		FromUser:  e.FromUser,
		Timestamp: p.now().UTC(),
	})
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	if err := kv.SetJSON(ctx, p.sessions, chatKey(visitorID), history); err != nil {
		metrics.StorageErrors.WithLabelValues("pipeline").Inc()
		p.logger.Warn().Err(err).Str("visitor", visitorID).Msg("chat history write failed")
	}
}

// ChatHistory returns the retained, sanitized chat messages for a
// visitor; absent data reads as empty.
func (p *Pipeline) ChatHistory(ctx context.Context, visitorID string) []ChatEntry {
	var history []ChatEntry
	if err := kv.GetJSON(ctx, p.sessions, chatKey(visitorID), &history); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("pipeline").Inc()
			p.logger.Warn().Err(err).Str("visitor", visitorID).Msg("chat history read failed, treating as empty")
		}
		return nil
	}
	return history
}

func (p *Pipeline) addScore(ctx context.Context, visitorID string, points int) {
	if _, err := p.leads.Add(ctx, visitorID, points); err != nil {
		p.logger.Warn().Err(err).Str("visitor", visitorID).Msg("lead score update failed")
	}
}

func (p *Pipeline) trackInterest(ctx context.Context, visitorID, topic string) {
	if err := p.segments.TrackInterest(ctx, visitorID, topic, 1); err != nil {
		p.logger.Warn().Err(err).Str("visitor", visitorID).Str("topic", topic).Msg("interest update failed")
	}
}

func (p *Pipeline) updateSegments(ctx context.Context, visitorID string) {
	if _, err := p.segments.Update(ctx, visitorID); err != nil {
		p.logger.Warn().Err(err).Str("visitor", visitorID).Msg("segment update failed")
	}
}

func (p *Pipeline) recordCatalogView(ctx context.Context, visitorID, serviceID string) {
	if p.catalog == nil {
		return
	}
	if err := p.catalog.RecordView(ctx, visitorID, serviceID); err != nil {
		p.logger.Warn().Err(err).Str("service", serviceID).Msg("catalog view record failed")
	}
	if err := p.catalog.RecordInteraction(ctx, visitorID, serviceID, 1); err != nil {
		p.logger.Warn().Err(err).Str("service", serviceID).Msg("catalog interaction record failed")
	}
}

func clickAllowed(c Click) bool {
	if c.OptIn {
		return true
	}
	_, ok := clickTagAllowList[c.Tag]
	return ok
}

// forward normalizes the event and hands it to the telemetry sink. A
// nil sink is a silent no-op; a failed forward only counts.
func (p *Pipeline) forward(ctx context.Context, visitorID, sessionID string, ev Event) {
	if p.sink == nil {
		return
	}
	payload := p.normalize(visitorID, sessionID, ev)
	if err := p.sink.Forward(ctx, payload); err != nil {
		metrics.TelemetryForwardFailures.Inc()
		p.logger.Debug().Err(err).Str("event", payload.Name).Msg("telemetry forward failed")
	}
}

func (p *Pipeline) normalize(visitorID, sessionID string, ev Event) Payload {
	payload := Payload{
		Name:          string(ev.EventKind()),
		VisitorDigest: Digest(visitorID),
		SessionID:     sessionID,
		Timestamp:     p.now().UTC(),
	}

	switch e := ev.(type) {
	case PageView:
		payload.Category = "navigation"
		payload.Action = "view"
		payload.Label = e.Path
	case Click:
		payload.Category = "interaction"
		payload.Action = "click"
		payload.Label = e.Tag
		payload.Meta = map[string]any{"id": e.ID, "text": SanitizePII(e.Text), "path": e.Path}
	case Form:
		payload.Category = "interaction"
		payload.Action = string(e.Action)
		payload.Label = e.FormID
		if e.Field != "" {
			payload.Meta = map[string]any{"field": e.Field, "value": SanitizePII(e.Value)}
		}
	case Chat:
		payload.Category = "chat"
		payload.Action = "message"
	case Tool:
		payload.Category = "interaction"
		payload.Action = "tool"
		payload.Label = e.ToolID
		payload.Meta = map[string]any{"completed": e.Completed}
	case Scroll:
		payload.Category = "engagement"
		payload.Action = "scroll"
		payload.Label = e.Path
		payload.Value = float64(e.Depth)
	case EngagementTick:
		payload.Category = "engagement"
		payload.Action = "tick"
		payload.Value = float64(e.Interval.Milliseconds())
	case PageExit:
		payload.Category = "navigation"
		payload.Action = "exit"
		payload.Label = e.Path
		payload.Value = float64(e.TimeOnPage.Milliseconds())
	case Error:
		payload.Category = "error"
		payload.Action = "exception"
		payload.Label = e.Source
		payload.Meta = map[string]any{"message": e.Message, "line": e.Line}
	case Performance:
		payload.Category = "performance"
		payload.Action = e.Metric
		payload.Label = e.Path
		payload.Value = e.Value
	}

	return payload
}
