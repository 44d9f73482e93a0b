// Package board is a small reference routing board: traces are polylines whose
// segments sit on layers with a preferred routing direction. It implements
// opt.Board so the scheduler can be run end to end.
package board

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"routeopt/internal/opt"
)

// Direction is a layer's preferred routing direction.
type Direction string

const (
	Horizontal Direction = "horizontal"
	Vertical   Direction = "vertical"
	Any        Direction = "any"
)

// DefaultAgainstFactor weights segments routed against their layer's
// preferred direction.
const DefaultAgainstFactor = 2.0

type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type Layer struct {
	Name      string    `yaml:"name" json:"name"`
	Preferred Direction `yaml:"preferred" json:"preferred"`
}

// Trace is one routable item. Layers holds the layer index of every segment,
// so len(Layers) == len(Points)-1.
type Trace struct {
	ID     int     `yaml:"id" json:"id"`
	Net    string  `yaml:"net,omitempty" json:"net,omitempty"`
	Points []Point `yaml:"points" json:"points"`
	Layers []int   `yaml:"layers" json:"layers"`
}

// Clone returns a deep copy of t.
func (t Trace) Clone() Trace {
	t.Points = append([]Point(nil), t.Points...)
	t.Layers = append([]int(nil), t.Layers...)
	return t
}

// Vias is the number of layer changes along the trace.
func (t Trace) Vias() int {
	n := 0
	for i := 1; i < len(t.Layers); i++ {
		if t.Layers[i] != t.Layers[i-1] {
			n++
		}
	}
	return n
}

// Length is the plain euclidean length of the trace.
func (t Trace) Length() float64 {
	total := 0.0
	for i := 1; i < len(t.Points); i++ {
		total += Distance(t.Points[i-1], t.Points[i])
	}
	return total
}

// Distance is the euclidean distance between a and b.
func Distance(a, b Point) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// Board is the reference routing board.
type Board struct {
	Name          string  `yaml:"name,omitempty" json:"name,omitempty"`
	AgainstFactor float64 `yaml:"againstFactor,omitempty" json:"againstFactor,omitempty"`
	Layers        []Layer `yaml:"layers" json:"layers"`
	// Traces are kept sorted by ID.
	Traces []Trace `yaml:"traces" json:"traces"`
}

var _ opt.Board = (*Board)(nil)

// New validates and normalizes a board built in memory.
func New(name string, layers []Layer, traces []Trace) (*Board, error) {
	b := &Board{Name: name, Layers: layers, Traces: traces}
	if err := b.normalize(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) normalize() error {
	if b.AgainstFactor <= 0 {
		b.AgainstFactor = DefaultAgainstFactor
	}
	for i := range b.Layers {
		if b.Layers[i].Preferred == "" {
			b.Layers[i].Preferred = Any
		}
	}
	sort.SliceStable(b.Traces, func(i, j int) bool { return b.Traces[i].ID < b.Traces[j].ID })
	return b.Validate()
}

// Validate checks the structural invariants of the board.
func (b *Board) Validate() error {
	if len(b.Layers) == 0 {
		return errors.New("board: at least one layer is required")
	}
	for i, l := range b.Layers {
		switch l.Preferred {
		case Horizontal, Vertical, Any:
		default:
			return fmt.Errorf("board: layer %d (%s): unknown preferred direction %q", i, l.Name, l.Preferred)
		}
	}
	for i, t := range b.Traces {
		if i > 0 && b.Traces[i-1].ID == t.ID {
			return fmt.Errorf("board: duplicate trace id %d", t.ID)
		}
		if len(t.Points) < 2 {
			return fmt.Errorf("board: trace %d needs at least two points", t.ID)
		}
		if len(t.Layers) != len(t.Points)-1 {
			return fmt.Errorf("board: trace %d has %d segments but %d layer assignments", t.ID, len(t.Points)-1, len(t.Layers))
		}
		for _, l := range t.Layers {
			if l < 0 || l >= len(b.Layers) {
				return fmt.Errorf("board: trace %d uses unknown layer %d", t.ID, l)
			}
		}
	}
	return nil
}

// Copy returns a deep copy of the board.
func (b *Board) Copy() opt.Board { return b.Clone() }

// Clone is Copy with a concrete return type.
func (b *Board) Clone() *Board {
	c := *b
	c.Layers = append([]Layer(nil), b.Layers...)
	c.Traces = make([]Trace, len(b.Traces))
	for i, t := range b.Traces {
		c.Traces[i] = t.Clone()
	}
	return &c
}

func (b *Board) ViaCount() int {
	n := 0
	for _, t := range b.Traces {
		n += t.Vias()
	}
	return n
}

func (b *Board) TraceLength() float64 {
	total := 0.0
	for _, t := range b.Traces {
		total += t.Length()
	}
	return total
}

func (b *Board) WeightedTraceLength() float64 {
	total := 0.0
	for _, t := range b.Traces {
		total += b.WeightedLength(t)
	}
	return total
}

// WeightedLength is the length of t with segments against their layer's
// preferred direction weighted by AgainstFactor.
func (b *Board) WeightedLength(t Trace) float64 {
	total := 0.0
	for i := 1; i < len(t.Points); i++ {
		total += b.SegmentCost(t.Points[i-1], t.Points[i], t.Layers[i-1])
	}
	return total
}

// SegmentCost is the weighted length of the segment a-b on layer.
func (b *Board) SegmentCost(a, p Point, layer int) float64 {
	d := Distance(a, p)
	if b.against(a, p, layer) {
		return d * b.AgainstFactor
	}
	return d
}

func (b *Board) against(a, p Point, layer int) bool {
	dx, dy := math.Abs(p.X-a.X), math.Abs(p.Y-a.Y)
	switch b.Layers[layer].Preferred {
	case Horizontal:
		return dy > dx
	case Vertical:
		return dx > dy
	}
	return false
}

// ItemIDs returns the trace ids in ascending order.
func (b *Board) ItemIDs() []int {
	ids := make([]int, len(b.Traces))
	for i, t := range b.Traces {
		ids[i] = t.ID
	}
	return ids
}

func (b *Board) index(id int) int {
	i := sort.Search(len(b.Traces), func(i int) bool { return b.Traces[i].ID >= id })
	if i < len(b.Traces) && b.Traces[i].ID == id {
		return i
	}
	return -1
}

// Trace returns a copy of the trace with the given id.
func (b *Board) Trace(id int) (Trace, bool) {
	i := b.index(id)
	if i < 0 {
		return Trace{}, false
	}
	return b.Traces[i].Clone(), true
}

// ReplaceTrace swaps in a new route for an existing trace.
func (b *Board) ReplaceTrace(t Trace) error {
	i := b.index(t.ID)
	if i < 0 {
		return fmt.Errorf("board: no trace with id %d", t.ID)
	}
	if len(t.Points) < 2 || len(t.Layers) != len(t.Points)-1 {
		return fmt.Errorf("board: trace %d is malformed", t.ID)
	}
	b.Traces[i] = t.Clone()
	return nil
}
