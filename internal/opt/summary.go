package opt

import "time"

// RoundSummary describes one finished round.
type RoundSummary struct {
	RunID             string            `json:"runId"`
	Round             int               `json:"round"`
	StartedAt         time.Time         `json:"startedAt"`
	Duration          time.Duration     `json:"duration"`
	PoolSize          int               `json:"poolSize"`
	UpdateStrategy    UpdateStrategy    `json:"updateStrategy"`
	SelectionStrategy SelectionStrategy `json:"selectionStrategy"`
	PreferDirections  bool              `json:"preferDirections"`

	Items    int `json:"items"`
	Finished int `json:"finished"`
	Failed   int `json:"failed"`
	Commits  int `json:"commits"`

	Improved     bool `json:"improved"`
	Interrupted  bool `json:"interrupted"`
	RipupRelaxed bool `json:"ripupRelaxed"`

	ViasBefore           int     `json:"viasBefore"`
	ViasAfter            int     `json:"viasAfter"`
	TraceLengthBefore    float64 `json:"traceLengthBefore"`
	TraceLengthAfter     float64 `json:"traceLengthAfter"`
	WeightedLengthBefore float64 `json:"weightedLengthBefore"`
	WeightedLengthAfter  float64 `json:"weightedLengthAfter"`

	// Best is the best result seen this round, committed or not.
	Best *RouteResult `json:"best,omitempty"`
}

// ViasRemoved is the via count reduction achieved by the round.
func (s RoundSummary) ViasRemoved() int { return s.ViasBefore - s.ViasAfter }

// LengthRemoved is the trace length reduction achieved by the round.
func (s RoundSummary) LengthRemoved() float64 { return s.TraceLengthBefore - s.TraceLengthAfter }

// Outcome is a short label for metrics and logs.
func (s RoundSummary) Outcome() string {
	switch {
	case s.Interrupted:
		return "interrupted"
	case s.Improved:
		return "improved"
	}
	return "unchanged"
}
