// Package record holds the input data model: records and the read-only,
// id-ordered dataset shared by every comparison task of a run.
package record

import (
	"sort"

	"github.com/mdm-linkage/internal/faults"
)

// ID identifies a record within one dataset
type ID = int64

// Record is one business-like entity to deduplicate
type Record struct {
	ID       ID
	Name     string
	Address  string
	Taxonomy string
}

// Dataset is an immutable collection of records sorted by id
type Dataset struct {
	records []Record
}

// NewDataset copies records into a dataset ordered by id. Duplicate ids are
// rejected as malformed input.
func NewDataset(records []Record) (*Dataset, error) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, faults.Malformed("dataset.new", "duplicate record id %d", sorted[i].ID)
		}
	}
	return &Dataset{records: sorted}, nil
}

// Len returns the number of records
func (d *Dataset) Len() int { return len(d.records) }

// At returns the record at position i in id order
func (d *Dataset) At(i int) Record { return d.records[i] }

// Get looks a record up by id
func (d *Dataset) Get(id ID) (Record, bool) {
	i := sort.Search(len(d.records), func(i int) bool { return d.records[i].ID >= id })
	if i < len(d.records) && d.records[i].ID == id {
		return d.records[i], true
	}
	return Record{}, false
}

// Records returns a copy of the records in id order
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}
