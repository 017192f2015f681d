// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package api

import (
	"net/http"
)

func (s *Server) handleExportData(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	export, err := s.governance.ExportUserData(r.Context(), vid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=vedalytics-export.json")
	writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleDeleteData(w http.ResponseWriter, r *http.Request) {
	vid := visitorID(r)
	if vid == "" {
		writeError(w, http.StatusBadRequest, "visitor_id required")
		return
	}
	report := s.governance.DeleteAllUserData(r.Context(), vid)
	writeJSON(w, http.StatusOK, report)
}
