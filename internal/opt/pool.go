package opt

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"routeopt/internal/metrics"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Pool is a fixed-size set of workers. It does not throttle submissions
// itself beyond its queue; callers are expected to check saturation before
// submitting.
type Pool struct {
	size   int
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    logr.Logger

	mu     sync.Mutex
	closed bool

	active    atomic.Int64
	finished  atomic.Int64
	submitted atomic.Int64
}

// NewPool starts size workers. Jobs receive a context derived from ctx that is
// also cancelled by ShutdownNow.
func NewPool(ctx context.Context, size int, log logr.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		size:   size,
		jobs:   make(chan job, size),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log,
	}
	var g errgroup.Group
	for i := 0; i < size; i++ {
		worker := i
		g.Go(func() error {
			for j := range p.jobs {
				p.execute(worker, j)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		cancel()
		close(p.done)
	}()
	return p
}

func (p *Pool) execute(worker int, j job) {
	p.active.Add(1)
	metrics.ActiveWorkers.Inc()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(fmt.Errorf("%v", r), "Worker recovered from panic", "worker", worker, "job", j.name, "stack", string(debug.Stack()))
		}
		metrics.ActiveWorkers.Dec()
		p.active.Add(-1)
		p.finished.Add(1)
	}()
	j.fn(logr.NewContext(p.ctx, p.log.WithValues("worker", worker, "job", j.name)))
}

// Submit queues fn for execution. It blocks only while the queue is full.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job{name: name, fn: fn}:
		p.submitted.Add(1)
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting jobs. Queued and running jobs still complete.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
}

// ShutdownNow cancels the context handed to jobs and stops accepting new ones.
// Jobs still queued are run with the cancelled context so they can release
// what they hold.
func (p *Pool) ShutdownNow() {
	p.cancel()
	p.Shutdown()
}

// AwaitTermination waits up to timeout for all workers to exit.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

// Done is closed once every worker has exited.
func (p *Pool) Done() <-chan struct{} { return p.done }

func (p *Pool) Size() int      { return p.size }
func (p *Pool) Active() int    { return int(p.active.Load()) }
func (p *Pool) Finished() int  { return int(p.finished.Load()) }
func (p *Pool) Submitted() int { return int(p.submitted.Load()) }
