package matrix

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/record"
)

// Result is one output row: a surviving pair and its final score
type Result struct {
	Lo    record.ID
	Hi    record.ID
	Score float64
}

// ResultHeader is the first row of a results file
var ResultHeader = []string{"lo", "hi", "score"}

// Results flattens a matrix into rows sorted on (Lo, Hi)
func (m Matrix) Results() []Result {
	keys := m.Keys()
	out := make([]Result, len(keys))
	for i, k := range keys {
		out[i] = Result{Lo: k.Lo, Hi: k.Hi, Score: m[k]}
	}
	return out
}

// WriteResults writes rows as CSV
func WriteResults(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			strconv.FormatInt(r.Lo, 10),
			strconv.FormatInt(r.Hi, 10),
			strconv.FormatFloat(r.Score, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteResultsFile writes rows to path
func WriteResultsFile(path string, results []Result) error {
	file, err := os.Create(path)
	if err != nil {
		return faults.Resource("results.write_file", err)
	}
	if err := WriteResults(file, results); err != nil {
		file.Close()
		return faults.Resource("results.write_file", err)
	}
	return faults.Resource("results.write_file", file.Close())
}
