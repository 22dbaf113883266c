package engine

import (
	"github.com/mdm-linkage/internal/address"
	"github.com/mdm-linkage/internal/proximity"
	"github.com/mdm-linkage/internal/record"
)

// Comparer scores one field of two records in [0,1]
type Comparer interface {
	Compare(a, b record.Record) (float64, error)
}

// ComparerFunc adapts a function to Comparer
type ComparerFunc func(a, b record.Record) (float64, error)

// Compare implements Comparer
func (f ComparerFunc) Compare(a, b record.Record) (float64, error) { return f(a, b) }

// NameComparer scores record names with a string metric
type NameComparer struct {
	Metric proximity.Metric
}

// Compare implements Comparer
func (c NameComparer) Compare(a, b record.Record) (float64, error) {
	return c.Metric.Proximity(a.Name, b.Name), nil
}

// AddressComparer parses addresses through a run scoped cache and scores
// them with address.Compare
type AddressComparer struct {
	Cache  *address.Cache
	Metric proximity.Metric
}

// Compare implements Comparer
func (c AddressComparer) Compare(a, b record.Record) (float64, error) {
	return c.Cache.Compare(a.Address, b.Address, c.Metric)
}

// Accept decides whether a score is emitted into the candidate matrix
type Accept func(score float64) bool

// AtLeast accepts scores >= threshold
func AtLeast(threshold float64) Accept {
	return func(score float64) bool { return score >= threshold }
}

// Above accepts scores > threshold
func Above(threshold float64) Accept {
	return func(score float64) bool { return score > threshold }
}
