// Package cluster drops ambiguous match clusters from the final matrix.
package cluster

import (
	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/record"
)

// DefaultAmbiguityCap is the largest group of pairs sharing a lower id that
// is kept
const DefaultAmbiguityCap = 3

// Stats summarises one filter pass
type Stats struct {
	Groups        int
	DroppedGroups int
	DroppedPairs  int
}

// Filter groups the pairs of m by their lower id and discards every group
// holding more than ambiguityCap pairs. The survivors are returned sorted
// on (Lo, Hi).
func Filter(m matrix.Matrix, ambiguityCap int) ([]matrix.Result, Stats) {
	if ambiguityCap < 1 {
		ambiguityCap = DefaultAmbiguityCap
	}

	keys := m.Keys()
	out := make([]matrix.Result, 0, len(keys))
	var stats Stats

	flush := func(group []matrix.PairKey) {
		if len(group) == 0 {
			return
		}
		stats.Groups++
		if len(group) > ambiguityCap {
			stats.DroppedGroups++
			stats.DroppedPairs += len(group)
			return
		}
		for _, k := range group {
			out = append(out, matrix.Result{Lo: k.Lo, Hi: k.Hi, Score: m[k]})
		}
	}

	start := 0
	for i := 1; i <= len(keys); i++ {
		if i == len(keys) || keys[i].Lo != keys[start].Lo {
			flush(keys[start:i])
			start = i
		}
	}
	return out, stats
}

// Counts returns how many pairs each lower id leads
func Counts(m matrix.Matrix) map[record.ID]int {
	counts := make(map[record.ID]int)
	for k := range m {
		counts[k.Lo]++
	}
	return counts
}
