// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/prakritilabs/vedalytics/internal/sentiment"
)

type sentimentRequest struct {
	Text string `json:"text" validate:"required"`
}

type sentimentBatchRequest struct {
	Texts []string `json:"texts" validate:"required,min=1"`
}

type sentimentTrendRequest struct {
	Samples []sentiment.Sample `json:"samples" validate:"required,min=2"`
}

func (s *Server) handleAnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	var req sentimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sentiment.Analyze(req.Text))
}

func (s *Server) handleAnalyzeSentimentBatch(w http.ResponseWriter, r *http.Request) {
	var req sentimentBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sentiment.AnalyzeBatch(req.Texts))
}

func (s *Server) handleSentimentTrend(w http.ResponseWriter, r *http.Request) {
	var req sentimentTrendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sentiment.Trend(req.Samples))
}
