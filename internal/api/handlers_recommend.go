// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/prakritilabs/vedalytics/internal/recommend"
)

const defaultRecommendLimit = 3

type doshaRequest struct {
	VisitorID string `json:"visitor_id" validate:"required"`
	Dosha     string `json:"dosha" validate:"required,oneof=vata pitta kapha"`
}

func limitParam(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultRecommendLimit
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	writeJSON(w, http.StatusOK, s.recommend.Recommend(r.Context(), vid, limitParam(r)))
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "serviceID")
	scored, err := s.recommend.Similar(serviceID, limitParam(r))
	if err != nil {
		if errors.Is(err, recommend.ErrServiceNotFound) {
			writeError(w, http.StatusNotFound, "unknown service")
			return
		}
		writeError(w, http.StatusInternalServerError, "similarity lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.recommend.Trending(limitParam(r)))
}

func (s *Server) handleSetDosha(w http.ResponseWriter, r *http.Request) {
	var req doshaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.recommend.SetDosha(r.Context(), req.VisitorID, req.Dosha); err != nil {
		writeError(w, http.StatusInternalServerError, "dosha persistence failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
