package normalize

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mdm-linkage/internal/record"
)

// DefaultMinWords is the smallest number of person-name words the extractor
// must find before its output replaces the raw name
const DefaultMinWords = 2

// minCleanLength is the shortest extracted name kept; shorter results fall
// back to the cleaned raw name
const minCleanLength = 6

// Extractor pulls the person name out of a free-text name field. It returns
// text unchanged when it finds fewer than minWords name words.
type Extractor interface {
	Extract(text string, minWords int) string
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(text string, minWords int) string

// Extract implements Extractor
func (f ExtractorFunc) Extract(text string, minWords int) string { return f(text, minWords) }

// Passthrough returns every name unchanged
var Passthrough Extractor = ExtractorFunc(func(text string, _ int) string { return text })

// Honorifics and credentials stripped from either end of a name
var Honorifics = []string{
	"MR.", "MR", "M.R", "MRS.", "MRS", "MSR.", "M.SR", "MSSI", "MS.", "M.S", "M.S.", ".SM",
	"DR.", "D.R", ".RD", "RD.", ".RM", "O.D.", "O. D.", "D.M.", "M. D.", "M.D.", "MD",
	"MA.", "MA", "M.A.", "M.", "CCC-SLP", "CCC/LSP", "CCC/SLP", "S.L.P.", "ST", "ST.", ".TS",
}

type affix struct {
	literal string
	prefix  *regexp.Regexp
	suffix  *regexp.Regexp
}

// Cleaner strips honorifics and noise from names
type Cleaner struct {
	affixes []affix
}

// NewCleaner compiles the affix list (Honorifics when nil)
func NewCleaner(literals []string) *Cleaner {
	if literals == nil {
		literals = Honorifics
	}
	c := &Cleaner{affixes: make([]affix, 0, len(literals))}
	for _, lit := range literals {
		q := regexp.QuoteMeta(lit)
		c.affixes = append(c.affixes, affix{
			literal: lit,
			prefix:  regexp.MustCompile(`^\s*` + q + `\s`),
			suffix:  regexp.MustCompile(`\s` + q + `\s*$`),
		})
	}
	return c
}

// Clean removes one leading and one trailing occurrence of each affix, cuts
// a comma-separated suffix found after the eighth character, drops
// apostrophes and trims
func (c *Cleaner) Clean(name string) string {
	for _, a := range c.affixes {
		if !strings.Contains(name, a.literal) {
			continue
		}
		name = replaceFirst(a.prefix, name)
		name = replaceFirst(a.suffix, name)
	}

	if i := strings.IndexByte(name, ','); i > 8 {
		name = name[:i]
	}

	name = strings.ReplaceAll(name, "'", "")
	return strings.TrimSpace(name)
}

func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

// Processor normalizes the name field of a dataset
type Processor struct {
	Extractor Extractor
	Cleaner   *Cleaner
	MinWords  int
}

// NewProcessor creates a processor. A nil extractor means Passthrough.
func NewProcessor(extractor Extractor, minWords int) *Processor {
	if extractor == nil {
		extractor = Passthrough
	}
	if minWords < 1 {
		minWords = DefaultMinWords
	}
	return &Processor{Extractor: extractor, Cleaner: NewCleaner(nil), MinWords: minWords}
}

// Name normalizes a single raw name. Failed is set when the extracted name
// was too short and the cleaned raw name was used instead.
func (p *Processor) Name(raw string) (name string, failed bool) {
	name = p.Cleaner.Clean(p.Extractor.Extract(raw, p.MinWords))
	if utf8.RuneCountInString(name) >= minCleanLength {
		return name, false
	}
	return p.Cleaner.Clean(raw), true
}

// Process returns copies of records with normalized names, sorted by name
// in US English collation and then by id. The second result counts the
// records that fell back to their cleaned raw name.
func (p *Processor) Process(records []record.Record) ([]record.Record, int) {
	out := make([]record.Record, len(records))
	fallbacks := 0
	for i, rec := range records {
		name, failed := p.Name(rec.Name)
		if failed {
			fallbacks++
		}
		rec.Name = name
		out[i] = rec
	}

	col := collate.New(language.AmericanEnglish)
	buf := &collate.Buffer{}
	keys := make([][]byte, len(out))
	for i, rec := range out {
		keys[i] = col.KeyFromString(buf, rec.Name)
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if c := bytes.Compare(keys[idx[a]], keys[idx[b]]); c != 0 {
			return c < 0
		}
		return out[idx[a]].ID < out[idx[b]].ID
	})

	sorted := make([]record.Record, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, fallbacks
}
