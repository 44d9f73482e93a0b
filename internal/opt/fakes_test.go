package opt

import (
	"context"
	"sync"
	"sync/atomic"
)

type boardCounters struct {
	copies   atomic.Int64
	released atomic.Int64
}

// fakeBoard is a board reduced to its scores.
type fakeBoard struct {
	items    []int
	vias     int
	length   float64
	weighted float64
	counters *boardCounters
}

func newFakeBoard(vias int, weighted float64, items ...int) *fakeBoard {
	return &fakeBoard{items: items, vias: vias, length: weighted, weighted: weighted, counters: &boardCounters{}}
}

func (b *fakeBoard) Copy() Board {
	b.counters.copies.Add(1)
	c := *b
	c.items = append([]int(nil), b.items...)
	return &c
}

func (b *fakeBoard) WeightedTraceLength() float64 { return b.weighted }
func (b *fakeBoard) TraceLength() float64         { return b.length }
func (b *fakeBoard) ViaCount() int                { return b.vias }
func (b *fakeBoard) ItemIDs() []int               { return append([]int(nil), b.items...) }
func (b *fakeBoard) Release()                     { b.counters.released.Add(1) }

type routeFunc func(ctx context.Context, req RerouteRequest, snap *fakeBoard) (RouteResult, error)

// fakeRouter records the requests it sees and delegates to fn.
type fakeRouter struct {
	fn routeFunc

	mu       sync.Mutex
	requests []RerouteRequest
}

func (r *fakeRouter) Reroute(ctx context.Context, req RerouteRequest, snap Board) (RouteResult, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.fn == nil {
		return RouteResult{ItemID: req.ItemID}, nil
	}
	return r.fn(ctx, req, snap.(*fakeBoard))
}

func (r *fakeRouter) order() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.ItemID)
	}
	return out
}

func (r *fakeRouter) seen() []RerouteRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RerouteRequest(nil), r.requests...)
}

// dropVia removes one via from the snapshot for every item accepted by keep.
func dropVia(keep func(item int) bool) routeFunc {
	return func(_ context.Context, req RerouteRequest, snap *fakeBoard) (RouteResult, error) {
		if !keep(req.ItemID) {
			return RouteResult{ItemID: req.ItemID, ViaCount: snap.vias}, nil
		}
		snap.vias--
		snap.weighted--
		snap.length--
		return RouteResult{
			ItemID:          req.ItemID,
			Improved:        true,
			ViaCount:        snap.vias,
			ViaCountReduced: 1,
			LengthReduced:   req.Baseline - snap.weighted,
		}, nil
	}
}

func even(item int) bool { return item%2 == 0 }

// recordingSink keeps everything it is handed.
type recordingSink struct {
	mu        sync.Mutex
	updates   []Progress
	summaries []RoundSummary
}

func (s *recordingSink) BoardUpdated(_ context.Context, p Progress) {
	s.mu.Lock()
	s.updates = append(s.updates, p)
	s.mu.Unlock()
}

func (s *recordingSink) RoundFinished(_ context.Context, sum RoundSummary) {
	s.mu.Lock()
	s.summaries = append(s.summaries, sum)
	s.mu.Unlock()
}

func (s *recordingSink) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *recordingSink) strategies() []UpdateStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UpdateStrategy, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum.UpdateStrategy)
	}
	return out
}
