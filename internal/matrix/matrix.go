// Package matrix implements the sparse similarity matrix exchanged between
// pipeline stages.
package matrix

import (
	"fmt"
	"sort"

	"github.com/mdm-linkage/internal/record"
)

// PairKey identifies an unordered pair of records. Lo is always below Hi.
type PairKey struct {
	Lo record.ID
	Hi record.ID
}

// NewPairKey canonicalises a and b into a PairKey
func NewPairKey(a, b record.ID) (PairKey, error) {
	switch {
	case a < b:
		return PairKey{Lo: a, Hi: b}, nil
	case a > b:
		return PairKey{Lo: b, Hi: a}, nil
	default:
		return PairKey{}, fmt.Errorf("self pair for record %d", a)
	}
}

// Less orders keys lexicographically on (Lo, Hi)
func (k PairKey) Less(o PairKey) bool {
	if k.Lo != o.Lo {
		return k.Lo < o.Lo
	}
	return k.Hi < o.Hi
}

func (k PairKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.Lo, k.Hi)
}

// Matrix maps a pair to its score in [0,1]
type Matrix map[PairKey]float64

// New allocates an empty matrix
func New() Matrix { return make(Matrix) }

// Put stores score under the canonical key of a and b
func (m Matrix) Put(a, b record.ID, score float64) error {
	key, err := NewPairKey(a, b)
	if err != nil {
		return err
	}
	m[key] = score
	return nil
}

// Lookup returns the score of a and b in either order
func (m Matrix) Lookup(a, b record.ID) (float64, bool) {
	key, err := NewPairKey(a, b)
	if err != nil {
		return 0, false
	}
	score, ok := m[key]
	return score, ok
}

// Keys returns the keys sorted on (Lo, Hi)
func (m Matrix) Keys() []PairKey {
	keys := make([]PairKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// SortKeys sorts keys in place on (Lo, Hi)
func SortKeys(keys []PairKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Merge unions parts into a new matrix. Parts produced by sibling tasks have
// disjoint keys; on overlap the later part wins.
func Merge(parts ...Matrix) Matrix {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make(Matrix, size)
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// Equal reports whether both matrices hold the same keys with the same scores
func Equal(a, b Matrix) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
