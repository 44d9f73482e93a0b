package opt

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
)

type taskState int

const (
	taskPending taskState = iota
	taskCleaned
	taskPromoted
)

// Task reroutes one item against a snapshot it owns exclusively. The worker
// running the task is the only writer until the task is handed back to the
// scheduler; after that only the scheduler touches it.
type Task struct {
	ID               string
	ItemID           int
	Round            int
	PreferDirections bool
	Baseline         float64
	IncreasedRipup   bool

	snapshot Board
	state    taskState
	result   *RouteResult
	err      error
}

func newTask(itemID, round int, preferDirections bool, baseline float64, increasedRipup bool, snapshot Board) *Task {
	return &Task{
		ID:               uuid.NewString(),
		ItemID:           itemID,
		Round:            round,
		PreferDirections: preferDirections,
		Baseline:         baseline,
		IncreasedRipup:   increasedRipup,
		snapshot:         snapshot,
	}
}

func (t *Task) request() RerouteRequest {
	return RerouteRequest{
		ItemID:           t.ItemID,
		Round:            t.Round,
		PreferDirections: t.PreferDirections,
		Baseline:         t.Baseline,
		IncreasedRipup:   t.IncreasedRipup,
	}
}

func (t *Task) run(ctx context.Context, r Router) {
	defer func() {
		if p := recover(); p != nil {
			t.result = nil
			t.err = fmt.Errorf("reroute of item %d panicked: %v\n%s", t.ItemID, p, debug.Stack())
		}
	}()
	if err := ctx.Err(); err != nil {
		t.err = err
		return
	}
	res, err := r.Reroute(ctx, t.request(), t.snapshot)
	if err != nil {
		t.err = fmt.Errorf("reroute item %d: %w", t.ItemID, err)
		return
	}
	res.ItemID = t.ItemID
	t.result = &res
}

// Result returns the task's route result, if it produced one.
func (t *Task) Result() (RouteResult, bool) {
	if t.result == nil {
		return RouteResult{}, false
	}
	return *t.result, true
}

// Err returns the failure recorded while running the task.
func (t *Task) Err() error { return t.err }

// clean discards the snapshot. It returns false if the snapshot was already
// cleaned or promoted.
func (t *Task) clean() bool {
	if t.state != taskPending {
		return false
	}
	t.state = taskCleaned
	if rel, ok := t.snapshot.(Releaser); ok {
		rel.Release()
	}
	t.snapshot = nil
	return true
}

// promote hands the snapshot over to the caller, who becomes its owner.
func (t *Task) promote() (Board, bool) {
	if t.state != taskPending {
		return nil, false
	}
	t.state = taskPromoted
	b := t.snapshot
	t.snapshot = nil
	return b, true
}

func (t *Task) String() string {
	return fmt.Sprintf("round %d item %d (%s)", t.Round, t.ItemID, t.ID)
}
