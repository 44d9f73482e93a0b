package opt

import "fmt"

// RouteResult is the outcome of rerouting one item.
type RouteResult struct {
	ItemID          int     `json:"itemId"`
	Improved        bool    `json:"improved"`
	ViaCount        int     `json:"viaCount"`
	ViaCountReduced int     `json:"viaCountReduced"`
	LengthReduced   float64 `json:"lengthReduced"`
}

// Compare orders results for arbitration. It returns a positive number when a
// ranks above b and a negative number when it ranks below. Results for
// different items never compare equal: exact quality ties go to the lower
// item id so the winner of a round does not depend on completion order.
func Compare(a, b RouteResult) int {
	if a.Improved != b.Improved {
		if a.Improved {
			return 1
		}
		return -1
	}
	if a.ViaCountReduced != b.ViaCountReduced {
		if a.ViaCountReduced > b.ViaCountReduced {
			return 1
		}
		return -1
	}
	if a.LengthReduced != b.LengthReduced {
		if a.LengthReduced > b.LengthReduced {
			return 1
		}
		return -1
	}
	switch {
	case a.ItemID < b.ItemID:
		return 1
	case a.ItemID > b.ItemID:
		return -1
	}
	return 0
}

// BetterThan reports whether r strictly outranks other.
func (r RouteResult) BetterThan(other RouteResult) bool {
	return Compare(r, other) > 0
}

func (r RouteResult) String() string {
	return fmt.Sprintf("item=%d improved=%t vias=%d via-=%d len-=%.4f",
		r.ItemID, r.Improved, r.ViaCount, r.ViaCountReduced, r.LengthReduced)
}
