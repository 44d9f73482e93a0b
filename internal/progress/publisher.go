package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"routeopt/internal/logging"
	"routeopt/internal/opt"
)

// outboxSize bounds the events waiting for the broker.
const outboxSize = 64

// Publisher turns scheduler callbacks into broker events. Board updates are
// rate limited; round summaries always go out. Events are handed to the
// broker from a background goroutine so a slow broker never stalls the
// scheduler. It also remembers the latest state for snapshot queries.
type Publisher struct {
	broker  EventBroker
	limiter *rate.Limiter
	log     logr.Logger
	now     func() time.Time

	outbox   chan Event
	done     chan struct{}
	closeMu  sync.RWMutex
	closed   bool
	overflow atomic.Int64

	mu        sync.RWMutex
	board     opt.Progress
	hasBoard  bool
	summary   opt.RoundSummary
	hasRound  bool
	throttled atomic.Int64
}

var _ opt.ProgressSink = (*Publisher)(nil)

// NewPublisher publishes to broker. perSecond <= 0 disables throttling.
func NewPublisher(broker EventBroker, perSecond float64, burst int, log logr.Logger) *Publisher {
	p := &Publisher{broker: broker, log: log, now: time.Now, outbox: make(chan Event, outboxSize), done: make(chan struct{})}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for evt := range p.outbox {
		p.broker.Publish(evt.RunID, evt)
	}
}

// enqueue hands evt to the publishing goroutine. Board updates are dropped
// when the outbox is full; summaries wait for room.
func (p *Publisher) enqueue(evt Event, wait bool) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return
	}
	if wait {
		p.outbox <- evt
		return
	}
	select {
	case p.outbox <- evt:
	default:
		p.overflow.Add(1)
		p.log.V(logging.DEBUG).Info("Progress outbox full, dropping board update", "runId", evt.RunID)
	}
}

// Close publishes what is queued and stops the background goroutine. Later
// callbacks only update the snapshot.
func (p *Publisher) Close() error {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.outbox)
	}
	p.closeMu.Unlock()
	<-p.done
	return nil
}

func (p *Publisher) BoardUpdated(_ context.Context, pr opt.Progress) {
	p.mu.Lock()
	p.board, p.hasBoard = pr, true
	p.mu.Unlock()
	if p.limiter != nil && !p.limiter.Allow() {
		p.throttled.Add(1)
		p.log.V(logging.TRACE).Info("Throttled board update", "round", pr.Round, "vias", pr.Vias)
		return
	}
	p.enqueue(Event{Type: EventBoardUpdated, RunID: pr.RunID, Time: p.now(), Board: &pr}, false)
}

func (p *Publisher) RoundFinished(_ context.Context, s opt.RoundSummary) {
	p.mu.Lock()
	p.summary, p.hasRound = s, true
	p.mu.Unlock()
	p.enqueue(Event{Type: EventRoundFinished, RunID: s.RunID, Time: p.now(), Round: &s}, true)
}

// Latest returns the most recent board sample.
func (p *Publisher) Latest() (opt.Progress, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.board, p.hasBoard
}

// LatestRound returns the most recent round summary.
func (p *Publisher) LatestRound() (opt.RoundSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summary, p.hasRound
}

// Throttled is the number of board updates dropped by the rate limit.
func (p *Publisher) Throttled() int64 { return p.throttled.Load() }

// Overflowed is the number of board updates dropped because the broker fell
// behind.
func (p *Publisher) Overflowed() int64 { return p.overflow.Load() }

type tee []opt.ProgressSink

// Tee forwards every callback to each sink in order.
func Tee(sinks ...opt.ProgressSink) opt.ProgressSink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t tee) BoardUpdated(ctx context.Context, p opt.Progress) {
	for _, s := range t {
		s.BoardUpdated(ctx, p)
	}
}

func (t tee) RoundFinished(ctx context.Context, s opt.RoundSummary) {
	for _, sink := range t {
		sink.RoundFinished(ctx, s)
	}
}
