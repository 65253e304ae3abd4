package beam

import (
	"math"
	"sort"
)

// Select returns the width lowest-scoring items of pool, ascending, with ties
// kept in pool order. NaN scores never survive. pool is not modified.
func Select(pool []Item, width int) []Item {
	ranked := make([]Item, 0, len(pool))
	for _, it := range pool {
		if math.IsNaN(it.Score) {
			continue
		}
		ranked = append(ranked, it)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	if len(ranked) > width {
		ranked = ranked[:width]
	}
	return ranked
}
