// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/prakritilabs/vedalytics/internal/abtest"
	"github.com/prakritilabs/vedalytics/internal/kv"
)

type funnelStepRequest struct {
	VisitorID string `json:"visitor_id" validate:"required"`
	Step      string `json:"step" validate:"required"`
}

type funnelCompleteRequest struct {
	VisitorID string            `json:"visitor_id" validate:"required"`
	FormData  map[string]string `json:"form_data,omitempty"`
}

type funnelAbandonRequest struct {
	VisitorID string `json:"visitor_id" validate:"required"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleFunnelStep(w http.ResponseWriter, r *http.Request) {
	var req funnelStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	session, _, err := s.identity.GetOrCreateSession(ctx, req.VisitorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session resolve failed")
		return
	}
	if err := s.funnel.TrackStep(ctx, req.VisitorID, session.ID, req.Step); err != nil {
		writeError(w, http.StatusInternalServerError, "step tracking failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleFunnelComplete(w http.ResponseWriter, r *http.Request) {
	var req funnelCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.funnel.Complete(r.Context(), req.VisitorID, req.FormData); err != nil {
		writeError(w, http.StatusInternalServerError, "funnel completion failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleFunnelAbandon(w http.ResponseWriter, r *http.Request) {
	var req funnelAbandonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.funnel.Abandon(r.Context(), req.VisitorID, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, "abandonment tracking failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleGetFunnel(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	f, err := s.funnel.Get(r.Context(), vid)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			writeError(w, http.StatusNotFound, "no active funnel")
			return
		}
		writeError(w, http.StatusInternalServerError, "funnel read failed")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleGetVariant resolves the visitor's sticky assignment for a test.
// Unknown or inactive tests answer 404; an assignment whose variant was
// removed from configuration answers 410.
func (s *Server) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	testID := chi.URLParam(r, "testID")

	variant, err := s.abtests.Variant(r.Context(), vid, testID)
	if err != nil {
		if errors.Is(err, abtest.ErrVariantNotFound) {
			writeError(w, http.StatusGone, "assigned variant no longer configured")
			return
		}
		writeError(w, http.StatusInternalServerError, "variant lookup failed")
		return
	}
	if variant == nil {
		writeError(w, http.StatusNotFound, "test unknown or inactive")
		return
	}
	writeJSON(w, http.StatusOK, variant)
}
