// Package fusion rescores name candidates with address and taxonomy evidence
// and unions in the address-only candidates.
package fusion

// Thresholds of the fusion rules
type Thresholds struct {
	// Address scores below this are treated as a non-matching address
	Address float64
	// Full is the final score a pair must exceed to survive
	Full float64
}

// Fuse combines a name candidate score with the address score of the same
// pair. taxonomy is only evaluated when no short circuit applies.
func Fuse(nameScore, addrScore float64, taxonomy func() float64, th Thresholds) float64 {
	if nameScore >= 1 && addrScore >= 1 {
		return 1
	}
	if addrScore < th.Address {
		addrScore = 0
	}

	taxScore := taxonomy()
	if addrScore >= 1 && taxScore >= 1 {
		return 1
	}

	final := (nameScore + addrScore + taxScore) / 3
	if final > 1 {
		final = 1
	}
	return final
}

// Survives reports whether a fused score passes the full threshold
func (th Thresholds) Survives(final float64) bool {
	return final > th.Full
}
