package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

const (
	defaultTurnsLimit = 50
	maxTurnsLimit     = 500
	healthTimeout     = 2 * time.Second
)

// healthResponse is the body of GET /v1/health.
type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Workers map[string]any    `json:"workers,omitempty"`
}

// handleHealth handles GET /v1/health. Each registered check is pinged; any
// failure reports "degraded" with 503. Worker snapshots ride along.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		resp.Checks = make(map[string]string, len(s.checks))
		for name, p := range s.checks {
			if err := p.Ping(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	if len(s.workers) > 0 {
		resp.Workers = make(map[string]any, len(s.workers))
		for name, status := range s.workers {
			resp.Workers[name] = status()
		}
	}
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// turnsResponse is the body of GET /v1/turns.
type turnsResponse struct {
	Turns []*model.TurnRecord `json:"turns"`
}

// handleListTurns handles GET /v1/turns?limit=N&since=RFC3339.
func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	if s.turns == nil {
		writeError(w, http.StatusServiceUnavailable, "turn log not configured")
		return
	}
	q := r.URL.Query()

	limit := defaultTurnsLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTurnsLimit)
	}

	var since time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	turns, err := s.turns.ListTurns(r.Context(), since, limit)
	if err != nil {
		s.logger.Error("list turns", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}
	if turns == nil {
		turns = []*model.TurnRecord{}
	}
	writeJSON(w, http.StatusOK, turnsResponse{Turns: turns})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
