// Package api serves optimizer progress and round history over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routeopt/internal/metrics"
	"routeopt/internal/opt"
	"routeopt/internal/progress"
	"routeopt/internal/store"
)

// Status is the live view of a running optimization. *opt.Scheduler
// implements it.
type Status interface {
	RunID() string
	Progress() (total, finished int)
	Board() opt.Progress
	LastSummary() opt.RoundSummary
}

type pinger interface{ Ping(ctx context.Context) error }

type Server struct {
	Status Status
	Store  store.Store
	Broker progress.EventBroker
	Log    logr.Logger
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/info", s.DebugJSON)
	mux.HandleFunc("/v1/progress", s.ProgressHandler)
	mux.HandleFunc("/v1/progress/stream", s.StreamHandler)
	mux.HandleFunc("/v1/progress/ws", s.WSHandler)
	mux.HandleFunc("/v1/rounds", s.RoundsHandler)
	mux.HandleFunc("/v1/rounds/", s.RoundByIDHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return s.logMiddleware(instrument(mux))
}
