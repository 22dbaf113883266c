// Package blocking orders records by a blocking field and cuts the ordered
// sequence into runs that share a blocking key. Only records inside the same
// run are compared against each other.
package blocking

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mdm-linkage/internal/address"
	"github.com/mdm-linkage/internal/record"
)

// EmptyKey is the blocking key of a record whose blocking field is empty or
// has no letter or digit to block on
const EmptyKey = '_'

// Field selects the value records are blocked on
type Field int

const (
	// ByName blocks on the record name
	ByName Field = iota
	// ByCity blocks on the city parsed from the address
	ByCity
)

func (f Field) String() string {
	switch f {
	case ByName:
		return "name"
	case ByCity:
		return "city"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Key derives the blocking key of value: its first character transliterated
// to ASCII and upper-cased
func Key(value string) rune {
	value = strings.TrimSpace(value)
	if value == "" {
		return EmptyKey
	}
	first, _ := utf8.DecodeRuneInString(value)
	ascii := strings.TrimSpace(unidecode.Unidecode(string(first)))
	if ascii == "" {
		return EmptyKey
	}
	r, _ := utf8.DecodeRuneInString(ascii)
	r = unicode.ToUpper(r)
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return EmptyKey
	}
	return r
}

// Entry is one record at its position in the blocking order
type Entry struct {
	Record record.Record
	Value  string // the blocking field value
	Key    rune
}

// Run is a maximal stretch [Start, End) of entries sharing Key
type Run struct {
	Key   rune
	Start int
	End   int
}

// Len returns the number of records in the run
func (r Run) Len() int { return r.End - r.Start }

// Pairs returns the number of comparisons made inside the run
func (r Run) Pairs() int {
	n := r.Len()
	return n * (n - 1) / 2
}

// Ordering is a dataset sorted for blocking and cut into runs
type Ordering struct {
	Field   Field
	Entries []Entry
	Runs    []Run
}

// Order sorts records on (blocking key, collated field value, id) and
// collects the runs. ByCity needs parser to extract the city; any parse
// failure aborts the ordering.
func Order(records []record.Record, field Field, parser address.Parser) (*Ordering, error) {
	entries := make([]Entry, len(records))
	for i, rec := range records {
		value, err := fieldValue(rec, field, parser)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		entries[i] = Entry{Record: rec, Value: value, Key: Key(value)}
	}

	col := collate.New(language.AmericanEnglish)
	buf := &collate.Buffer{}
	sortKeys := make([][]byte, len(entries))
	for i := range entries {
		sortKeys[i] = col.KeyFromString(buf, entries[i].Value)
	}

	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ea, eb := entries[idx[a]], entries[idx[b]]
		if ea.Key != eb.Key {
			return ea.Key < eb.Key
		}
		if c := bytes.Compare(sortKeys[idx[a]], sortKeys[idx[b]]); c != 0 {
			return c < 0
		}
		return ea.Record.ID < eb.Record.ID
	})

	sorted := make([]Entry, len(entries))
	for i, j := range idx {
		sorted[i] = entries[j]
	}

	return &Ordering{Field: field, Entries: sorted, Runs: FindRuns(sorted)}, nil
}

// FindRuns scans entries once and returns the maximal runs of equal key
func FindRuns(entries []Entry) []Run {
	var runs []Run
	start := 0
	for i := 1; i <= len(entries); i++ {
		if i == len(entries) || entries[i].Key != entries[start].Key {
			runs = append(runs, Run{Key: entries[start].Key, Start: start, End: i})
			start = i
		}
	}
	return runs
}

func fieldValue(rec record.Record, field Field, parser address.Parser) (string, error) {
	switch field {
	case ByName:
		return rec.Name, nil
	case ByCity:
		if parser == nil {
			parser = address.Positional
		}
		addr, err := parser.Parse(rec.Address)
		if err != nil {
			return "", err
		}
		return addr.City, nil
	default:
		return "", fmt.Errorf("unknown blocking field %d", int(field))
	}
}
