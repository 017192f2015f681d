// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package identity manages the stable pseudonymous visitor identity and
// the rolling session window. A visitor id is minted once per profile and
// never regenerated while storage persists; a session expires after a
// fixed inactivity timeout and every tracked event implicitly refreshes
// its last-activity timestamp.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prakritilabs/vedalytics/internal/kv"
	"github.com/prakritilabs/vedalytics/internal/metrics"
)

// DefaultSessionTimeout is the inactivity window after which a session
// expires.
const DefaultSessionTimeout = 30 * time.Minute

// Visitor is the durable per-device profile.
type Visitor struct {
	ID         string    `json:"id"`
	FirstSeen  time.Time `json:"first_seen"`
	VisitCount int       `json:"visit_count"`
}

// Session is the rolling session pointer for a visitor.
type Session struct {
	ID           string    `json:"id"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionData holds the mutable aggregate counters for one session.
// Counters reset at session creation, not at visitor creation.
type SessionData struct {
	SessionID      string    `json:"session_id"`
	PageViews      int       `json:"page_views"`
	Events         int       `json:"events"`
	EngagementTime int64     `json:"engagement_time_ms"`
	MaxScrollDepth int       `json:"max_scroll_depth"`
	StartTime      time.Time `json:"start_time"`
}

// Manager owns visitor and session state in the durable scope.
type Manager struct {
	store   kv.Store
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewManager creates an identity manager. A zero timeout selects
// DefaultSessionTimeout.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewManager(store kv.Store, timeout time.Duration, logger zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &Manager{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With().Str("component", "identity").Logger(),
	}
}

// SetNow overrides the clock. Intended for tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

func visitorKey(id string) string     { return "visitor:" + id }
func sessionKey(id string) string     { return "session:" + id }
func sessionDataKey(id string) string { return "sessiondata:" + id }

// GetOrCreateVisitor returns the visitor profile for id, creating it
// under the supplied id when unknown. A fresh id is minted only when id
// is empty; every other component keys state off the client's id, so
// adopting it keeps consent, scores, and the governance inventory under
// one identity. The returned bool reports creation.
func (m *Manager) GetOrCreateVisitor(ctx context.Context, id string) (Visitor, bool, error) {
	if id != "" {
		var visitor Visitor
		err := kv.GetJSON(ctx, m.store, visitorKey(id), &visitor)
		if err == nil {
			return visitor, false, nil
		}
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("identity").Inc()
			m.logger.Warn().Err(err).Str("visitor", id).Msg("visitor read failed, recreating")
		}
	}

	visitor := Visitor{
		ID:        id,
		FirstSeen: m.now(),
	}
	if visitor.ID == "" {
		visitor.ID = uuid.New().String()
	}
	if err := kv.SetJSON(ctx, m.store, visitorKey(visitor.ID), visitor); err != nil {
		return Visitor{}, false, err
	}
	return visitor, true, nil
}

// GetVisitor returns the visitor profile, or kv.ErrKeyNotFound.
func (m *Manager) GetVisitor(ctx context.Context, id string) (Visitor, error) {
	var visitor Visitor
	err := kv.GetJSON(ctx, m.store, visitorKey(id), &visitor)
	return visitor, err
}

// GetOrCreateSession returns a valid session for the visitor, minting a
// new one when none exists or the previous one expired. A new session
// increments the visitor's visit count and resets session counters. The
// returned bool reports creation.
func (m *Manager) GetOrCreateSession(ctx context.Context, visitorID string) (Session, bool, error) {
	now := m.now()

	var session Session
	err := kv.GetJSON(ctx, m.store, sessionKey(visitorID), &session)
	if err == nil && now.Sub(session.LastActivity) < m.timeout {
		return session, false, nil
	}
	if err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		metrics.StorageErrors.WithLabelValues("identity").Inc()
		m.logger.Warn().Err(err).Str("visitor", visitorID).Msg("session read failed, minting new")
	}

	session = Session{ID: uuid.New().String(), LastActivity: now}
	if err := kv.SetJSON(ctx, m.store, sessionKey(visitorID), session); err != nil {
		return Session{}, false, err
	}

	data := SessionData{SessionID: session.ID, StartTime: now}
	if err := kv.SetJSON(ctx, m.store, sessionDataKey(session.ID), data); err != nil {
		metrics.StorageErrors.WithLabelValues("identity").Inc()
		m.logger.Warn().Err(err).Msg("session data reset failed")
	}

	if err := m.bumpVisitCount(ctx, visitorID); err != nil {
		m.logger.Warn().Err(err).Str("visitor", visitorID).Msg("visit count bump failed")
	}

	metrics.SessionsStarted.Inc()
	return session, true, nil
}

func (m *Manager) bumpVisitCount(ctx context.Context, visitorID string) error {
	var visitor Visitor
	if err := kv.GetJSON(ctx, m.store, visitorKey(visitorID), &visitor); err != nil {
		return err
	}
	visitor.VisitCount++
	return kv.SetJSON(ctx, m.store, visitorKey(visitorID), visitor)
}

// Touch refreshes the session's last-activity timestamp. Called implicitly
// by every tracked event.
func (m *Manager) Touch(ctx context.Context, visitorID string) error {
	var session Session
	if err := kv.GetJSON(ctx, m.store, sessionKey(visitorID), &session); err != nil {
		return err
	}
	session.LastActivity = m.now()
	return kv.SetJSON(ctx, m.store, sessionKey(visitorID), session)
}

// SessionData returns the counters for a session id. Absent data yields a
// zero-value aggregate.
func (m *Manager) SessionData(ctx context.Context, sessionID string) SessionData {
	var data SessionData
	if err := kv.GetJSON(ctx, m.store, sessionDataKey(sessionID), &data); err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			metrics.StorageErrors.WithLabelValues("identity").Inc()
		}
		return SessionData{SessionID: sessionID}
	}
	return data
}

// UpdateSessionData applies fn to the session's counters and persists the
// result. The read-modify-write has no awaited gap; mutation stays on the
// calling goroutine.
func (m *Manager) UpdateSessionData(ctx context.Context, sessionID string, fn func(*SessionData)) error {
	data := m.SessionData(ctx, sessionID)
	fn(&data)
	return kv.SetJSON(ctx, m.store, sessionDataKey(sessionID), data)
}
