package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"routeopt/internal/buildinfo"
	"routeopt/internal/opt"
	"routeopt/internal/store"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

// ReadyHandler checks the store and, when it supports it, the event broker.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if s.Store != nil {
		if err := s.Store.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "store: "+err.Error(), r.URL.Path)
			return
		}
	}
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "broker: "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type progressResponse struct {
	RunID     string            `json:"runId"`
	Total     int               `json:"total"`
	Finished  int               `json:"finished"`
	Board     opt.Progress      `json:"board"`
	LastRound *opt.RoundSummary `json:"lastRound,omitempty"`
}

// ProgressHandler handles GET /v1/progress.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Status == nil {
		writeProblem(w, http.StatusServiceUnavailable, "No active run", "", r.URL.Path)
		return
	}
	total, finished := s.Status.Progress()
	resp := progressResponse{RunID: s.Status.RunID(), Total: total, Finished: finished, Board: s.Status.Board()}
	if last := s.Status.LastSummary(); last.Round > 0 {
		resp.LastRound = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

// RoundsHandler handles GET /v1/rounds?runId=&limit=. runId defaults to the
// active run; "*" lists every run.
func (s *Server) RoundsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/rounds" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, err := queryInt(r, "limit", store.DefaultLimit)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
		return
	}
	runID := s.runID(r)
	if runID == "*" {
		runID = ""
	}
	items, err := s.Store.ListRounds(r.Context(), runID, limit)
	if err != nil {
		s.Log.Error(err, "Failed to list rounds", "runId", runID)
		writeProblem(w, http.StatusInternalServerError, "List rounds failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RoundByIDHandler handles GET /v1/rounds/{id}.
func (s *Server) RoundByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rounds/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.Store.GetRound(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Round not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get round failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) runID(r *http.Request) string {
	if id := r.URL.Query().Get("runId"); id != "" {
		return id
	}
	if s.Status != nil {
		return s.Status.RunID()
	}
	return ""
}
