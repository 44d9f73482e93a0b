package store

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"routeopt/internal/logging"
	"routeopt/internal/opt"
)

// Recorder is an opt.ProgressSink that persists every round summary.
type Recorder struct {
	Store   Store
	Log     logr.Logger
	Timeout time.Duration
}

var _ opt.ProgressSink = (*Recorder)(nil)

func (r *Recorder) BoardUpdated(context.Context, opt.Progress) {}

func (r *Recorder) RoundFinished(ctx context.Context, s opt.RoundSummary) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	id, err := r.Store.SaveRound(ctx, s)
	if err != nil {
		r.Log.Error(err, "Failed to record round summary", "runId", s.RunID, "round", s.Round)
		return
	}
	r.Log.V(logging.DEBUG).Info("Recorded round summary", "id", id, "runId", s.RunID, "round", s.Round)
}
