package opt

import "context"

// Board is the routing board the scheduler optimizes. Implementations must
// make Copy deep enough that a router can mutate the copy without touching
// the board it was copied from.
type Board interface {
	Copy() Board
	WeightedTraceLength() float64
	TraceLength() float64
	ViaCount() int
	// ItemIDs enumerates routable items in a stable canonical order.
	ItemIDs() []int
}

// Releaser is implemented by boards that hold resources beyond plain memory.
// Release is called once when a task snapshot is discarded.
type Releaser interface {
	Release()
}

// RerouteRequest describes one reroute attempt handed to a Router.
type RerouteRequest struct {
	ItemID           int
	Round            int
	PreferDirections bool
	// Baseline is the master board's weighted trace length when the task's
	// snapshot was taken.
	Baseline       float64
	IncreasedRipup bool
}

// Router reroutes a single item against a task-private snapshot. It may block
// for a long time and must be safe to call concurrently on distinct snapshots.
type Router interface {
	Reroute(ctx context.Context, req RerouteRequest, snapshot Board) (RouteResult, error)
}

// Progress is a board-level progress sample.
type Progress struct {
	RunID          string  `json:"runId"`
	Round          int     `json:"round"`
	Vias           int     `json:"vias"`
	WeightedLength float64 `json:"weightedLength"`
	TraceLength    float64 `json:"traceLength"`
}

// ProgressSink receives board updates and end-of-round summaries.
type ProgressSink interface {
	BoardUpdated(ctx context.Context, p Progress)
	RoundFinished(ctx context.Context, s RoundSummary)
}

type discardSink struct{}

func (discardSink) BoardUpdated(context.Context, Progress)      {}
func (discardSink) RoundFinished(context.Context, RoundSummary) {}
