package board

import (
	"fmt"
	"math"
	"math/rand"
)

// GenerateOptions controls Generate.
type GenerateOptions struct {
	Traces    int
	MinPoints int
	MaxPoints int
	// Size is the edge length of the square board area.
	Size float64
}

// DefaultGenerateOptions returns options for a board of n traces.
func DefaultGenerateOptions(n int) GenerateOptions {
	return GenerateOptions{Traces: n, MinPoints: 3, MaxPoints: 7, Size: 1000}
}

// Generate builds a two layer board with deliberately poor routes: random
// detours and random layer assignments, so there are vias and segments
// against the preferred direction to clean up.
func Generate(rng *rand.Rand, o GenerateOptions) *Board {
	if o.MinPoints < 2 {
		o.MinPoints = 2
	}
	if o.MaxPoints < o.MinPoints {
		o.MaxPoints = o.MinPoints
	}
	if o.Size <= 0 {
		o.Size = 1000
	}
	layers := []Layer{{Name: "top", Preferred: Horizontal}, {Name: "bottom", Preferred: Vertical}}
	traces := make([]Trace, 0, o.Traces)
	for id := 1; id <= o.Traces; id++ {
		n := o.MinPoints + rng.Intn(o.MaxPoints-o.MinPoints+1)
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{X: snap(rng.Float64() * o.Size), Y: snap(rng.Float64() * o.Size)}
		}
		ls := make([]int, n-1)
		for i := range ls {
			ls[i] = rng.Intn(len(layers))
		}
		traces = append(traces, Trace{ID: id, Net: fmt.Sprintf("N%03d", id), Points: pts, Layers: ls})
	}
	return &Board{Name: fmt.Sprintf("generated-%d", o.Traces), AgainstFactor: DefaultAgainstFactor, Layers: layers, Traces: traces}
}

func snap(v float64) float64 { return math.Round(v) }
