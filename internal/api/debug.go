package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"routeopt/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"runtime": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"cpus":       runtime.NumCPU(),
		},
		"config": map[string]any{
			"PORT":             os.Getenv("PORT"),
			"HAS_DATABASE_URL": os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":    os.Getenv("REDIS_URL") != "",
		},
	}
	if s.Status != nil {
		info["runId"] = s.Status.RunID()
	}
	writeJSON(w, http.StatusOK, info)
}
