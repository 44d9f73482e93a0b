// Package opt schedules concurrent reroute attempts over a routing board and
// folds their results back into a single master board.
package opt

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"routeopt/internal/logging"
	"routeopt/internal/metrics"
)

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logr.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithSink sets the progress sink. The default discards everything.
func WithSink(sink ProgressSink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithRunID sets the run identifier reported with progress and summaries.
func WithRunID(id string) Option { return func(s *Scheduler) { s.runID = id } }

type boardStats struct {
	vias     int
	length   float64
	weighted float64
}

func statsOf(b Board) boardStats {
	return boardStats{vias: b.ViaCount(), length: b.TraceLength(), weighted: b.WeightedTraceLength()}
}

// round is the per-round plumbing shared by the submitter and the workers.
type round struct {
	no      int
	prefer  bool
	slots   *semaphore.Weighted
	results chan *Task
}

func newRound(no int, prefer bool, poolSize int) *round {
	return &round{
		no:      no,
		prefer:  prefer,
		slots:   semaphore.NewWeighted(int64(poolSize)),
		results: make(chan *Task, poolSize),
	}
}

// Scheduler runs optimization rounds. RunRound must not be called
// concurrently with itself; Progress, Master and LastSummary may be called
// from any goroutine.
type Scheduler struct {
	cfg    Config
	router Router
	sink   ProgressSink
	log    logr.Logger
	runID  string
	cycle  *strategyCycle
	rng    *rand.Rand

	mu             sync.Mutex
	master         Board
	baseline       float64
	increasedRipup bool
	lastResults    map[int]RouteResult
	last           RoundSummary

	// per round state, reset by beginRound
	round         int
	started       time.Time
	before        boardStats
	activeUpdate  UpdateStrategy
	activeSelect  SelectionStrategy
	pending       []int
	finished      int
	failed        int
	commits       int
	roundImproved bool
	roundBest     *RouteResult
	best          *Task
	bestResult    RouteResult
}

// New validates cfg and returns a scheduler owning master.
func New(cfg Config, master Board, router Router, opts ...Option) (*Scheduler, error) {
	if master == nil {
		return nil, errors.New("opt: master board is required")
	}
	if router == nil {
		return nil, errors.New("opt: router is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:            cfg,
		router:         router,
		sink:           discardSink{},
		log:            logr.Discard(),
		master:         master,
		baseline:       master.WeightedTraceLength(),
		increasedRipup: cfg.IncreasedRipupCosts,
		lastResults:    make(map[int]RouteResult),
	}
	for _, o := range opts {
		o(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.log = s.log.WithValues("runId", s.runID)
	if cfg.UpdateStrategy == Hybrid {
		tokens, err := HybridSchedule(cfg.HybridRatio)
		if err != nil {
			s.log.Info("Failed to parse hybrid ratio, using default", "ratio", cfg.HybridRatio, "default", DefaultHybridRatio, "reason", err.Error())
		}
		s.cycle = newStrategyCycle(tokens)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed))
	return s, nil
}

// RunID identifies the scheduler's run.
func (s *Scheduler) RunID() string { return s.runID }

// RunRound tries every item of the master board once and returns whether the
// round improved the board. A cancelled ctx interrupts the round: no new tasks
// are submitted, running tasks are asked to stop and nothing further is
// committed.
func (s *Scheduler) RunRound(ctx context.Context, roundNo int, preferDirections bool) bool {
	items, update, selection, start := s.beginRound(roundNo)
	log := s.log.WithValues("round", roundNo)
	s.sink.BoardUpdated(ctx, s.progress())
	log.V(logging.DEFAULT).Info("Starting optimization round",
		"items", len(items), "threads", s.cfg.PoolSize,
		"updateStrategy", update, "selectionStrategy", selection,
		"preferDirections", preferDirections, "increasedRipup", s.ripup())

	rd := newRound(roundNo, preferDirections, s.cfg.PoolSize)
	pool := NewPool(ctx, s.cfg.PoolSize, log)
	interrupted := false
	submitted := 0
	for i := 0; i < len(items) && !interrupted; {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		if !rd.slots.TryAcquire(1) {
			interrupted = !s.awaitSlot(ctx, rd, log)
			continue
		}
		t := s.snapshotTask(items[i], rd)
		log.V(logging.TRACE).Info("Scheduling reroute task", "index", i+1, "of", len(items), "item", t.ItemID, "task", t.ID)
		err := pool.Submit(t.String(), func(ctx context.Context) {
			t.run(ctx, s.router)
			rd.results <- t
		})
		if err != nil {
			log.V(logging.VERBOSE).Info("Stopped scheduling tasks", "item", t.ItemID, "reason", err.Error())
			t.clean()
			rd.slots.Release(1)
			interrupted = true
			break
		}
		submitted++
		i++
	}
	pool.Shutdown()
	log.V(logging.VERBOSE).Info("Closed task queue", "submitted", submitted)

	if !interrupted {
		interrupted = !s.drain(ctx, rd, pool, submitted, log)
	}
	if interrupted {
		log.V(logging.DEFAULT).Info("Optimization round interrupted", "finished", s.reported(), "submitted", submitted)
		pool.ShutdownNow()
		go s.cleanAbandoned(rd, pool)
	} else {
		<-pool.Done()
	}
	return s.finishRound(ctx, rd, start, interrupted, log)
}

// beginRound resets the per round state and fixes the round's item order.
func (s *Scheduler) beginRound(roundNo int) ([]int, UpdateStrategy, SelectionStrategy, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.best != nil {
		s.best.clean()
		s.best = nil
	}
	if s.cycle != nil {
		s.activeUpdate = s.cycle.next()
	} else {
		s.activeUpdate = s.cfg.UpdateStrategy
	}
	s.activeSelect = effectiveSelection(s.cfg.SelectionStrategy, s.activeUpdate)
	s.round = roundNo
	s.started = time.Now()
	s.before = statsOf(s.master)
	s.baseline = s.before.weighted
	s.finished, s.failed, s.commits = 0, 0, 0
	s.roundImproved = false
	s.roundBest = nil
	s.bestResult = RouteResult{}
	s.pending = orderItems(s.activeSelect, s.master.ItemIDs(), s.lastResults, s.rng)
	return append([]int(nil), s.pending...), s.activeUpdate, s.activeSelect, s.started
}

// snapshotTask copies the current master for a new task. Under Greedy the
// master may already differ from the one the round started with.
func (s *Scheduler) snapshotTask(itemID int, rd *round) *Task {
	s.mu.Lock()
	master, baseline, ripup := s.master, s.baseline, s.increasedRipup
	s.mu.Unlock()
	return newTask(itemID, rd.no, rd.prefer, baseline, ripup, master.Copy())
}

// awaitSlot blocks until an in-flight task reports, SlotWait elapses or ctx is
// done. It returns false on cancellation.
func (s *Scheduler) awaitSlot(ctx context.Context, rd *round, log logr.Logger) bool {
	timer := time.NewTimer(s.cfg.SlotWait)
	defer timer.Stop()
	select {
	case t := <-rd.results:
		s.reportResult(ctx, rd, t)
	case <-timer.C:
		log.V(logging.VERBOSE).Info("Still waiting for a free worker", "waited", s.cfg.SlotWait)
	case <-ctx.Done():
		return false
	}
	return true
}

// drain reports results until every submitted task has reported. It wakes up
// at least every PollInterval and returns false on cancellation.
func (s *Scheduler) drain(ctx context.Context, rd *round, pool *Pool, submitted int, log logr.Logger) bool {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for s.reported() < submitted {
		select {
		case t := <-rd.results:
			s.reportResult(ctx, rd, t)
		case <-ticker.C:
			log.V(logging.DEFAULT).Info("Waiting for in-flight reroute tasks",
				"completed", pool.Finished(), "active", pool.Active(), "submitted", pool.Submitted())
			if ctx.Err() != nil {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// cleanAbandoned disposes of the snapshots of tasks that finish after their
// round was interrupted.
func (s *Scheduler) cleanAbandoned(rd *round, pool *Pool) {
	discard := func(t *Task) {
		if t.clean() {
			metrics.Tasks.WithLabelValues(metrics.OutcomeAbandoned).Inc()
		}
	}
	for {
		select {
		case t := <-rd.results:
			discard(t)
		case <-pool.Done():
			for {
				select {
				case t := <-rd.results:
					discard(t)
				default:
					return
				}
			}
		}
	}
}

// reportResult folds one finished task into the round. It is safe for
// concurrent use and frees the task's worker slot.
func (s *Scheduler) reportResult(ctx context.Context, rd *round, t *Task) {
	defer rd.slots.Release(1)

	res, ok := t.Result()
	s.mu.Lock()
	s.finished++
	if !ok {
		s.failed++
		t.clean()
		s.mu.Unlock()
		metrics.Tasks.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.log.Error(t.Err(), "Reroute task failed", "round", t.Round, "item", t.ItemID, "task", t.ID)
		return
	}
	s.lastResults[res.ItemID] = res
	won := false
	if res.Improved {
		s.roundImproved = true
		if s.roundBest == nil || res.BetterThan(*s.roundBest) {
			r := res
			s.roundBest = &r
		}
		if s.best == nil || res.BetterThan(s.bestResult) {
			if s.best != nil {
				s.best.clean()
			}
			s.best, s.bestResult, won = t, res, true
		}
	}
	if !won {
		t.clean()
	}
	var committed *Progress
	if won && s.activeUpdate == Greedy {
		p := s.commitLocked()
		committed = &p
	}
	s.mu.Unlock()

	if res.Improved {
		metrics.Tasks.WithLabelValues(metrics.OutcomeImproved).Inc()
	} else {
		metrics.Tasks.WithLabelValues(metrics.OutcomeUnchanged).Inc()
	}
	s.log.V(logging.DEBUG).Info("Reroute task finished", "round", t.Round, "item", t.ItemID, "result", res.String(), "best", won)
	if committed != nil {
		s.log.V(logging.VERBOSE).Info("Committed improved board", "round", t.Round, "item", t.ItemID,
			"vias", committed.Vias, "weightedLength", committed.WeightedLength)
		s.sink.BoardUpdated(ctx, *committed)
	}
}

// commitLocked promotes the current best snapshot to master. s.mu is held.
func (s *Scheduler) commitLocked() Progress {
	b, ok := s.best.promote()
	s.best = nil
	s.bestResult = RouteResult{}
	if !ok {
		return s.progressLocked()
	}
	s.master = b
	s.baseline = b.WeightedTraceLength()
	s.commits++
	metrics.Commits.WithLabelValues(string(s.activeUpdate)).Inc()
	p := s.progressLocked()
	metrics.BoardVias.Set(float64(p.Vias))
	metrics.BoardWeightedLength.Set(p.WeightedLength)
	return p
}

func (s *Scheduler) finishRound(ctx context.Context, rd *round, start time.Time, interrupted bool, log logr.Logger) bool {
	// sinks may persist the summary; they still need a live context
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	var committed *Progress
	if s.best != nil {
		if !interrupted && s.activeUpdate == GlobalOptimal {
			p := s.commitLocked()
			committed = &p
		} else {
			s.best.clean()
			s.best = nil
		}
	}
	improved := s.roundImproved
	relaxed := false
	if !interrupted && !improved && s.increasedRipup {
		s.increasedRipup = false
		relaxed = true
		improved = true
	}
	after := statsOf(s.master)
	sum := RoundSummary{
		RunID:                s.runID,
		Round:                rd.no,
		StartedAt:            start,
		Duration:             time.Since(start),
		PoolSize:             s.cfg.PoolSize,
		UpdateStrategy:       s.activeUpdate,
		SelectionStrategy:    s.activeSelect,
		PreferDirections:     rd.prefer,
		Items:                len(s.pending),
		Finished:             s.finished,
		Failed:               s.failed,
		Commits:              s.commits,
		Improved:             s.roundImproved,
		Interrupted:          interrupted,
		RipupRelaxed:         relaxed,
		ViasBefore:           s.before.vias,
		ViasAfter:            after.vias,
		TraceLengthBefore:    s.before.length,
		TraceLengthAfter:     after.length,
		WeightedLengthBefore: s.before.weighted,
		WeightedLengthAfter:  after.weighted,
		Best:                 s.roundBest,
	}
	s.last = sum
	s.mu.Unlock()

	if committed != nil {
		log.V(logging.VERBOSE).Info("Committed best result of round", "item", sum.Best.ItemID,
			"vias", committed.Vias, "weightedLength", committed.WeightedLength)
		s.sink.BoardUpdated(ctx, *committed)
	}
	if relaxed {
		log.V(logging.DEFAULT).Info("No improvement with increased ripup costs, continuing with regular costs")
	}
	metrics.Rounds.WithLabelValues(string(sum.UpdateStrategy), sum.Outcome()).Inc()
	metrics.RoundDuration.WithLabelValues(string(sum.UpdateStrategy)).Observe(sum.Duration.Seconds())
	log.V(logging.DEFAULT).Info("Finished optimization round",
		"duration", sum.Duration.String(), "commits", sum.Commits, "threads", sum.PoolSize,
		"updateStrategy", sum.UpdateStrategy, "selectionStrategy", sum.SelectionStrategy,
		"improved", sum.Improved, "interrupted", sum.Interrupted,
		"vias", sum.ViasAfter, "length", sum.TraceLengthAfter,
		"viasRemoved", sum.ViasRemoved(), "lengthRemoved", sum.LengthRemoved())
	s.sink.RoundFinished(ctx, sum)
	return improved
}

func (s *Scheduler) reported() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *Scheduler) ripup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increasedRipup
}

func (s *Scheduler) progressLocked() Progress {
	return Progress{
		RunID:          s.runID,
		Round:          s.round,
		Vias:           s.master.ViaCount(),
		WeightedLength: s.master.WeightedTraceLength(),
		TraceLength:    s.master.TraceLength(),
	}
}

func (s *Scheduler) progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// Progress reports the current round's item count and how many tasks have
// reported so far.
func (s *Scheduler) Progress() (total, finished int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), s.finished
}

// Board returns a board level progress sample of the master.
func (s *Scheduler) Board() Progress { return s.progress() }

// Master returns the current master board. Callers must not modify it.
func (s *Scheduler) Master() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.master
}

// LastSummary returns the summary of the most recently finished round.
func (s *Scheduler) LastSummary() RoundSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// IncreasedRipupCosts reports whether the next round uses increased ripup costs.
func (s *Scheduler) IncreasedRipupCosts() bool { return s.ripup() }
