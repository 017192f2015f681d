// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"net/http"

	"github.com/prakritilabs/vedalytics/internal/leadscore"
)

type leadScoreResponse struct {
	VisitorID string           `json:"visitor_id"`
	Score     int              `json:"score"`
	Status    leadscore.Status `json:"status"`
}

func (s *Server) handleGetLeadScore(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	score := s.leads.Get(r.Context(), vid)
	writeJSON(w, http.StatusOK, leadScoreResponse{
		VisitorID: vid,
		Score:     score,
		Status:    leadscore.StatusFor(score),
	})
}

func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	segments := s.segments.Segments(r.Context(), vid)
	writeJSON(w, http.StatusOK, map[string]any{
		"visitor_id": vid,
		"segments":   segments,
	})
}

// handleContentPerformance returns one path's rollup when ?path= is
// given, otherwise every tracked path.
func (s *Server) handleContentPerformance(w http.ResponseWriter, r *http.Request) {
	if path := r.URL.Query().Get("path"); path != "" {
		writeJSON(w, http.StatusOK, s.content.Get(r.Context(), path))
		return
	}
	all, err := s.content.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "content read failed")
		return
	}
	writeJSON(w, http.StatusOK, all)
}
