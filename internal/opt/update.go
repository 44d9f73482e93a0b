package opt

import (
	"fmt"
	"strconv"
	"strings"
)

// UpdateStrategy decides when winning snapshots are committed to the master
// board.
type UpdateStrategy string

const (
	// Greedy commits every round winner as soon as it is found.
	Greedy UpdateStrategy = "greedy"
	// GlobalOptimal commits only the single best result at the end of a round.
	GlobalOptimal UpdateStrategy = "global_optimal"
	// Hybrid alternates between GlobalOptimal and Greedy rounds.
	Hybrid UpdateStrategy = "hybrid"
)

// DefaultHybridRatio is used when no ratio, or a malformed one, is configured.
const DefaultHybridRatio = "1:1"

// MaxHybridCount bounds each side of a hybrid ratio.
const MaxHybridCount = 1000

// ParseUpdateStrategy parses a strategy name. Dashes and spaces are accepted in
// place of underscores.
func ParseUpdateStrategy(s string) (UpdateStrategy, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch UpdateStrategy(norm) {
	case Greedy, "":
		return Greedy, nil
	case GlobalOptimal, "globaloptimal", "global":
		return GlobalOptimal, nil
	case Hybrid:
		return Hybrid, nil
	}
	return "", fmt.Errorf("unknown board update strategy %q (allowed: greedy, global_optimal, hybrid)", s)
}

// HybridSchedule expands a ratio "a:b" into a cycle of a GlobalOptimal tokens
// followed by b Greedy tokens. A missing or malformed ratio yields the 1:1
// schedule together with an error describing what was wrong; callers treat
// that error as a warning.
func HybridSchedule(ratio string) ([]UpdateStrategy, error) {
	optimal, greedy, err := parseRatio(ratio)
	if err != nil {
		optimal, greedy = 1, 1
	}
	out := make([]UpdateStrategy, 0, optimal+greedy)
	for i := 0; i < optimal; i++ {
		out = append(out, GlobalOptimal)
	}
	for i := 0; i < greedy; i++ {
		out = append(out, Greedy)
	}
	return out, err
}

func parseRatio(ratio string) (int, int, error) {
	ratio = strings.TrimSpace(ratio)
	if ratio == "" {
		return 0, 0, fmt.Errorf("hybrid ratio not set, using %s", DefaultHybridRatio)
	}
	parts := strings.Split(ratio, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid hybrid ratio %q, want a:b", ratio)
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil {
		return 0, 0, fmt.Errorf("invalid hybrid ratio %q, want two integers", ratio)
	}
	if a < 0 || b < 0 || a+b == 0 {
		return 0, 0, fmt.Errorf("invalid hybrid ratio %q, counts must be non-negative and not both zero", ratio)
	}
	if a > MaxHybridCount || b > MaxHybridCount {
		return 0, 0, fmt.Errorf("invalid hybrid ratio %q, counts must not exceed %d", ratio, MaxHybridCount)
	}
	return a, b, nil
}

// strategyCycle hands out one update strategy per round.
type strategyCycle struct {
	tokens []UpdateStrategy
	idx    int
}

func newStrategyCycle(tokens []UpdateStrategy) *strategyCycle {
	return &strategyCycle{tokens: tokens, idx: -1}
}

func (c *strategyCycle) next() UpdateStrategy {
	c.idx = (c.idx + 1) % len(c.tokens)
	return c.tokens[c.idx]
}
