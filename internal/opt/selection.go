package opt

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// SelectionStrategy decides the order in which items are tried in a round.
type SelectionStrategy string

const (
	Sequential  SelectionStrategy = "sequential"
	Random      SelectionStrategy = "random"
	Prioritized SelectionStrategy = "prioritized"
)

// ParseSelectionStrategy parses a strategy name, ignoring case.
func ParseSelectionStrategy(s string) (SelectionStrategy, error) {
	switch SelectionStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case Sequential, "":
		return Sequential, nil
	case Random:
		return Random, nil
	case Prioritized:
		return Prioritized, nil
	}
	return "", fmt.Errorf("unknown item selection strategy %q (allowed: sequential, random, prioritized)", s)
}

// effectiveSelection returns the selection strategy that applies in a round
// whose active update strategy is update. GlobalOptimal rounds always
// traverse items sequentially.
func effectiveSelection(configured SelectionStrategy, update UpdateStrategy) SelectionStrategy {
	if update == GlobalOptimal {
		return Sequential
	}
	return configured
}

// orderItems computes a round's item order from the canonical board order.
func orderItems(strategy SelectionStrategy, canonical []int, prior map[int]RouteResult, rng *rand.Rand) []int {
	ids := append([]int(nil), canonical...)
	switch strategy {
	case Random:
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	case Prioritized:
		ids = prioritize(ids, prior)
	}
	return ids
}

// prioritize puts items with a recorded result first, best result first, and
// appends the remaining items in canonical order.
func prioritize(canonical []int, prior map[int]RouteResult) []int {
	seen := make([]RouteResult, 0, len(prior))
	fresh := make([]int, 0, len(canonical))
	for _, id := range canonical {
		if r, ok := prior[id]; ok {
			r.ItemID = id
			seen = append(seen, r)
		} else {
			fresh = append(fresh, id)
		}
	}
	sort.SliceStable(seen, func(i, j int) bool { return Compare(seen[i], seen[j]) > 0 })
	out := make([]int, 0, len(canonical))
	for _, r := range seen {
		out = append(out, r.ItemID)
	}
	return append(out, fresh...)
}
