package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   common.GetVersion(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleGetDividends(w http.ResponseWriter, r *http.Request) {
	field, desc, ok := parseSort(r)
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, "Invalid sort or order parameter", "invalid_sort")
		return
	}

	result := s.service.GetDividends(r.Context(), false)
	s.writeDividends(w, result, field, desc)
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	result := s.service.GetDividends(r.Context(), true)
	s.writeDividends(w, result, "", false)
}

func (s *Server) writeDividends(w http.ResponseWriter, result *models.DividendsResult, field string, desc bool) {
	if field != "" {
		sortDividendSet(&result.Dividends, field, desc)
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleBackgroundUpdate(w http.ResponseWriter, r *http.Request) {
	result := s.service.StartBackgroundUpdate()
	status := http.StatusOK
	if result.Accepted {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, result)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.service.GetJobStatus())
}

func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.service.GetCacheInfo())
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if !s.service.ClearCache() {
		WriteJSON(w, http.StatusInternalServerError, clearResponse{Message: "Failed to clear cache"})
		return
	}
	WriteJSON(w, http.StatusOK, clearResponse{Success: true, Message: "Cache cleared"})
}

// parseSort reads the sort and order query parameters. An absent sort
// leaves the upstream order untouched.
func parseSort(r *http.Request) (field string, desc bool, ok bool) {
	q := r.URL.Query()
	field = strings.TrimSpace(q.Get("sort"))
	order := strings.ToLower(strings.TrimSpace(q.Get("order")))

	switch order {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return "", false, false
	}

	if field == "" {
		return "", false, true
	}
	if !sortable[field] {
		return "", false, false
	}
	return field, desc, true
}
