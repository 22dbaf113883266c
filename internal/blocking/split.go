package blocking

// Range is a half-open index range [Start, End)
type Range struct {
	Start int
	End   int
}

// Len returns the size of the range
func (r Range) Len() int { return r.End - r.Start }

// Halve splits r into two balanced halves
func (r Range) Halve() (Range, Range) {
	mid := r.Start + r.Len()/2
	return Range{r.Start, mid}, Range{mid, r.End}
}

// IsLeaf reports whether r is small enough to be processed directly
func (r Range) IsLeaf(chunkSize int) bool {
	return r.Len() < chunkSize || r.Len() <= 1
}

// Chunks splits [0, n) recursively in half while a range holds at least
// chunkSize indexes. The result is ordered, disjoint and covers [0, n).
func Chunks(n, chunkSize int) []Range {
	if n <= 0 {
		return nil
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	var out []Range
	var walk func(Range)
	walk = func(r Range) {
		if r.IsLeaf(chunkSize) {
			out = append(out, r)
			return
		}
		left, right := r.Halve()
		walk(left)
		walk(right)
	}
	walk(Range{0, n})
	return out
}

// Records counts the records covered by runs
func Records(runs []Run) int {
	n := 0
	for _, r := range runs {
		n += r.Len()
	}
	return n
}

// SplitRuns cuts runs in two at the run boundary closest to half of the
// covered records. A run is never split. Both halves are non-empty when
// len(runs) > 1.
func SplitRuns(runs []Run) ([]Run, []Run) {
	if len(runs) < 2 {
		return runs, nil
	}
	half := Records(runs) / 2

	best, bestDiff := 1, -1
	acc := 0
	for i := 0; i < len(runs)-1; i++ {
		acc += runs[i].Len()
		diff := acc - half
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = i+1, diff
		}
	}
	return runs[:best], runs[best:]
}
