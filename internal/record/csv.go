package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mdm-linkage/internal/faults"
)

// Column order of the tabular record format
const (
	ColumnID = iota
	ColumnName
	ColumnAddress
	ColumnTaxonomy

	columnCount
)

// Header is written as the first row of saved record files
var Header = []string{"id", "name", "address", "taxonomy"}

// ParseID parses a numeric id cell. The value is read as a floating point
// number and truncated, so "12.0" and "12" are the same id.
func ParseID(cell string) (ID, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, faults.Malformed("record.id", "id %q is not numeric", cell)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f > math.MaxInt64 {
		return 0, faults.Malformed("record.id", "id %q is not a positive integer", cell)
	}
	return ID(f), nil
}

// Read parses records from CSV. A first row matching Header, in any case, is
// skipped; any other row with a non-numeric id is malformed.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []Record
	for row := 1; ; row++ {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, faults.Malformed("record.read", "row %d: %v", row, err)
		}

		if len(cells) < columnCount {
			return nil, faults.Malformed("record.read", "row %d: want %d columns, got %d", row, columnCount, len(cells))
		}

		if row == 1 && isHeader(cells) {
			continue
		}
		id, err := ParseID(cells[ColumnID])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		records = append(records, Record{
			ID:       id,
			Name:     cells[ColumnName],
			Address:  cells[ColumnAddress],
			Taxonomy: cells[ColumnTaxonomy],
		})
	}
	return records, nil
}

func isHeader(cells []string) bool {
	for i, want := range Header {
		cell := strings.TrimSpace(strings.TrimPrefix(cells[i], "\ufeff"))
		if !strings.EqualFold(cell, want) {
			return false
		}
	}
	return true
}

// ReadFile loads a dataset from a CSV file
func ReadFile(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, faults.Resource("record.read_file", err)
	}
	defer file.Close()

	records, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return NewDataset(records)
}

// Write saves records as CSV with a header row
func Write(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{strconv.FormatInt(rec.ID, 10), rec.Name, rec.Address, rec.Taxonomy}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile saves records to path
func WriteFile(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return faults.Resource("record.write_file", err)
	}
	if err := Write(file, records); err != nil {
		file.Close()
		return faults.Resource("record.write_file", err)
	}
	return faults.Resource("record.write_file", file.Close())
}
