// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/prakritilabs/vedalytics/internal/events"
)

// trackRequest is the ingestion envelope. Payload shape depends on the
// event type.
type trackRequest struct {
	VisitorID string          `json:"visitor_id" validate:"required"`
	Type      events.Kind     `json:"type" validate:"required"`
	Payload   json.RawMessage `json:"payload"`
}

type bootstrapRequest struct {
	VisitorID string `json:"visitor_id"`
}

type bootstrapResponse struct {
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
	NewVisit  bool   `json:"new_visit"`
}

// handleVisitorBootstrap resolves or mints the visitor identity and its
// current session, and registers the standard data inventory.
func (s *Server) handleVisitorBootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VisitorID == "" {
		req.VisitorID = uuid.New().String()
	}

	ctx := r.Context()
	visitor, created, err := s.identity.GetOrCreateVisitor(ctx, req.VisitorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "visitor bootstrap failed")
		return
	}
	session, _, err := s.identity.GetOrCreateSession(ctx, visitor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session bootstrap failed")
		return
	}
	if err := s.governance.EnsureInventory(ctx, visitor.ID); err != nil {
		s.logger.Warn().Err(err).Str("visitor", visitor.ID).Msg("inventory registration failed")
	}

	writeJSON(w, http.StatusOK, bootstrapResponse{
		VisitorID: visitor.ID,
		SessionID: session.ID,
		NewVisit:  created,
	})
}

// handleTrackEvent decodes the tagged payload and feeds it to the
// pipeline. Tracking never fails the request: consent drops and
// degraded side effects are invisible to the caller.
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := decodeEvent(req.Type, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.pipeline.Track(r.Context(), req.VisitorID, ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// decodeEvent maps an envelope onto its concrete variant.
func decodeEvent(kind events.Kind, payload json.RawMessage) (events.Event, error) {
	switch kind {
	case events.KindPageView:
		var e events.PageView
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindClick:
		var e events.Click
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindForm:
		var e events.Form
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindChat:
		var e events.Chat
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindTool:
		var e events.Tool
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindScroll:
		var e events.Scroll
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindEngagementTick:
		var e events.EngagementTick
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindPageExit:
		var e events.PageExit
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindError:
		var e events.Error
		err := decodePayload(kind, payload, &e)
		return e, err
	case events.KindPerformance:
		var e events.Performance
		err := decodePayload(kind, payload, &e)
		return e, err
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
}

func decodePayload(kind events.Kind, payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload required for %s", kind)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload", kind)
	}
	return nil
}
