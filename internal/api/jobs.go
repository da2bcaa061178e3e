package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Jobs.JobStats(r.Context(), OwnerID(r.Context()))
	if err != nil {
		s.respondError(w, err, "failed to load job stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) recentJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRecentLimit, maxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.deps.Jobs.ListJobs(r.Context(), OwnerID(r.Context()), limit)
	if err != nil {
		s.respondError(w, err, "failed to list recent jobs")
		return
	}
	if jobs == nil {
		jobs = []pagegen.BulkJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
