// Package router holds a reference opt.Router for the reference board. It
// cleans up a single trace and keeps the change only if the trace scores
// better than before.
package router

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"routeopt/internal/board"
	"routeopt/internal/logging"
	"routeopt/internal/opt"
)

// ErrUnknownItem is returned for an item id the board does not contain.
var ErrUnknownItem = errors.New("router: unknown item")

const (
	// DefaultViaCost is the score of one via in trace length units.
	DefaultViaCost = 25.0
	// DefaultRipupMargin is the extra score a reroute must gain while increased
	// ripup costs are active.
	DefaultRipupMargin = 5.0
	// DefaultIterations bounds the 2-opt passes per trace.
	DefaultIterations = 8
)

// Simplifier reroutes a trace by uncrossing its bends, dropping redundant
// corners and reassigning segment layers.
type Simplifier struct {
	ViaCost     float64
	RipupMargin float64
	Iterations  int
	Log         logr.Logger
}

var _ opt.Router = (*Simplifier)(nil)

// NewSimplifier returns a Simplifier with default settings.
func NewSimplifier(log logr.Logger) *Simplifier {
	return &Simplifier{ViaCost: DefaultViaCost, RipupMargin: DefaultRipupMargin, Iterations: DefaultIterations, Log: log}
}

// Reroute implements opt.Router. It only ever changes the requested trace of
// snapshot.
func (s *Simplifier) Reroute(ctx context.Context, req opt.RerouteRequest, snapshot opt.Board) (opt.RouteResult, error) {
	b, ok := snapshot.(*board.Board)
	if !ok {
		return opt.RouteResult{}, fmt.Errorf("router: unsupported board type %T", snapshot)
	}
	orig, ok := b.Trace(req.ItemID)
	if !ok {
		return opt.RouteResult{}, fmt.Errorf("%w %d", ErrUnknownItem, req.ItemID)
	}
	log := s.logger(ctx)
	viasBefore := b.ViaCount()
	res := opt.RouteResult{ItemID: req.ItemID, ViaCount: viasBefore}

	cand := orig.Clone()
	cand.Points = uncross(cand.Points, s.iterations())
	if err := ctx.Err(); err != nil {
		return res, err
	}
	cand.Layers = s.assignLayers(b, cand.Points, req.PreferDirections)
	cand = dropCorners(b, cand)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	margin := 0.0
	if req.IncreasedRipup {
		margin = s.RipupMargin
	}
	before, after := s.score(b, orig), s.score(b, cand)
	if after+margin >= before-1e-9 {
		log.V(logging.TRACE).Info("Kept existing route", "item", req.ItemID, "score", before, "candidate", after, "margin", margin)
		res.LengthReduced = req.Baseline - b.WeightedTraceLength()
		return res, nil
	}
	if err := b.ReplaceTrace(cand); err != nil {
		return res, err
	}
	res.Improved = true
	res.ViaCount = b.ViaCount()
	res.ViaCountReduced = viasBefore - res.ViaCount
	res.LengthReduced = req.Baseline - b.WeightedTraceLength()
	log.V(logging.TRACE).Info("Rerouted item", "item", req.ItemID, "score", before, "newScore", after,
		"viasRemoved", res.ViaCountReduced, "lengthReduced", res.LengthReduced)
	return res, nil
}

// logger prefers the worker logger carried by ctx.
func (s *Simplifier) logger(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return s.Log
}

func (s *Simplifier) iterations() int {
	if s.Iterations <= 0 {
		return DefaultIterations
	}
	return s.Iterations
}

func (s *Simplifier) score(b *board.Board, t board.Trace) float64 {
	return b.WeightedLength(t) + s.ViaCost*float64(t.Vias())
}

// uncross applies 2-opt moves to the interior points until the polyline stops
// getting shorter. The end points never move.
func uncross(pts []board.Point, iterations int) []board.Point {
	n := len(pts)
	best := append([]board.Point(nil), pts...)
	bestLen := pathLength(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				cand := twoOptSwap(best, i, k)
				d := pathLength(cand)
				if d+1e-9 < bestLen {
					best, bestLen, improved = cand, d, true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(pts []board.Point, i, k int) []board.Point {
	out := make([]board.Point, len(pts))
	copy(out, pts[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = pts[j]
		pos++
	}
	copy(out[pos:], pts[k+1:])
	return out
}

func pathLength(pts []board.Point) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += board.Distance(pts[i-1], pts[i])
	}
	return total
}

// assignLayers picks a layer per segment minimising weighted length plus via
// cost. Without preferred directions a via costs twice as much, which favours
// fewer vias over direction.
func (s *Simplifier) assignLayers(b *board.Board, pts []board.Point, preferDirections bool) []int {
	nseg, nl := len(pts)-1, len(b.Layers)
	viaCost := s.ViaCost
	if !preferDirections {
		viaCost *= 2
	}
	cost := make([]float64, nl)
	from := make([][]int, nseg)
	for l := 0; l < nl; l++ {
		cost[l] = b.SegmentCost(pts[0], pts[1], l)
	}
	for i := 1; i < nseg; i++ {
		next := make([]float64, nl)
		from[i] = make([]int, nl)
		for l := 0; l < nl; l++ {
			seg := b.SegmentCost(pts[i], pts[i+1], l)
			next[l] = math.Inf(1)
			for p := 0; p < nl; p++ {
				c := cost[p] + seg
				if p != l {
					c += viaCost
				}
				if c < next[l] {
					next[l], from[i][l] = c, p
				}
			}
		}
		cost = next
	}
	last := 0
	for l := 1; l < nl; l++ {
		if cost[l] < cost[last] {
			last = l
		}
	}
	layers := make([]int, nseg)
	layers[nseg-1] = last
	for i := nseg - 1; i > 0; i-- {
		layers[i-1] = from[i][layers[i]]
	}
	return layers
}

// dropCorners removes interior points joining two segments on the same layer
// when the shortcut does not cost more than the two segments it replaces.
func dropCorners(b *board.Board, t board.Trace) board.Trace {
	for i := 1; i < len(t.Points)-1; {
		l := t.Layers[i-1]
		if t.Layers[i] != l {
			i++
			continue
		}
		direct := b.SegmentCost(t.Points[i-1], t.Points[i+1], l)
		bent := b.SegmentCost(t.Points[i-1], t.Points[i], l) + b.SegmentCost(t.Points[i], t.Points[i+1], l)
		if direct > bent+1e-9 {
			i++
			continue
		}
		t.Points = append(t.Points[:i], t.Points[i+1:]...)
		t.Layers = append(t.Layers[:i], t.Layers[i+1:]...)
	}
	return t
}
