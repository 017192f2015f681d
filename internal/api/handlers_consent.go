// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/prakritilabs/vedalytics/internal/consent"
)

type consentUpdateRequest struct {
	VisitorID       string `json:"visitor_id" validate:"required"`
	AcceptAll       bool   `json:"accept_all,omitempty"`
	RejectAll       bool   `json:"reject_all,omitempty"`
	Analytics       *bool  `json:"analytics,omitempty"`
	Marketing       *bool  `json:"marketing,omitempty"`
	Personalization *bool  `json:"personalization,omitempty"`
}

// visitorID pulls the visitor identifier from the query string.
func visitorID(r *http.Request) string {
	return r.URL.Query().Get("visitor_id")
}

func (s *Server) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	writeJSON(w, http.StatusOK, s.consent.Get(r.Context(), vid))
}

func (s *Server) handleUpdateConsent(w http.ResponseWriter, r *http.Request) {
	var req consentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	var (
		state consent.State
		err   error
	)
	switch {
	case req.AcceptAll:
		state, err = s.consent.AcceptAll(ctx, req.VisitorID)
	case req.RejectAll:
		state, err = s.consent.RejectAll(ctx, req.VisitorID)
	default:
		state, err = s.consent.Update(ctx, req.VisitorID, consent.Update{
			Analytics:       req.Analytics,
			Marketing:       req.Marketing,
			Personalization: req.Personalization,
		})
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "consent update failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	if err := s.consent.Revoke(r.Context(), vid); err != nil {
		writeError(w, http.StatusInternalServerError, "consent revoke failed")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
