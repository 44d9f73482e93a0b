package opt

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b RouteResult
		want int
	}{
		{"improved beats unchanged", RouteResult{ItemID: 9, Improved: true}, RouteResult{ItemID: 1, ViaCountReduced: 5}, 1},
		{"more vias removed wins", RouteResult{ItemID: 2, Improved: true, ViaCountReduced: 2}, RouteResult{ItemID: 1, Improved: true, ViaCountReduced: 1, LengthReduced: 50}, 1},
		{"more length removed wins", RouteResult{ItemID: 2, Improved: true, ViaCountReduced: 1, LengthReduced: 3}, RouteResult{ItemID: 1, Improved: true, ViaCountReduced: 1, LengthReduced: 2.5}, 1},
		{"tie goes to lower item", RouteResult{ItemID: 3, Improved: true, LengthReduced: 1}, RouteResult{ItemID: 1, Improved: true, LengthReduced: 1}, -1},
		{"same item", RouteResult{ItemID: 4}, RouteResult{ItemID: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Fatalf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Fatalf("Compare is not antisymmetric: got %d", got)
			}
		})
	}
}

func TestCompareTotalOrder(t *testing.T) {
	results := []RouteResult{
		{ItemID: 5, Improved: true, ViaCountReduced: 1, LengthReduced: 2},
		{ItemID: 1},
		{ItemID: 3, Improved: true, ViaCountReduced: 2},
		{ItemID: 2, Improved: true, ViaCountReduced: 1, LengthReduced: 2},
		{ItemID: 4, Improved: true, ViaCountReduced: 1, LengthReduced: 7},
	}
	sort.Slice(results, func(i, j int) bool { return results[i].BetterThan(results[j]) })
	var got []int
	for _, r := range results {
		got = append(got, r.ItemID)
	}
	if diff := cmp.Diff([]int{3, 4, 2, 5, 1}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}
