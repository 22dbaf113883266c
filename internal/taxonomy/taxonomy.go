// Package taxonomy scores two free-text taxonomy (specialty) descriptions.
package taxonomy

import (
	"strings"
	"unicode/utf8"

	"github.com/mdm-linkage/internal/proximity"
)

// MinTokenLength is the shortest token that takes part in the comparison
const MinTokenLength = 3

var noise = strings.NewReplacer("'", "", "&", " ")

// Compare returns 1 for a case-insensitive exact match and otherwise the best
// proximity between any two tokens of a and b.
func Compare(a, b string, m proximity.Metric) float64 {
	if strings.EqualFold(a, b) {
		return 1
	}

	first := Tokens(a)
	second := Tokens(b)

	var best float64
	for _, f := range first {
		for _, s := range second {
			if p := m.Proximity(f, s); p > best {
				best = p
			}
			if best >= 1 {
				return 1
			}
		}
	}
	return best
}

// Tokens splits a taxonomy on spaces and commas and keeps the cleaned
// tokens that are long enough to compare
func Tokens(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == ' ' || r == ',' })
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(noise.Replace(tok))
		if utf8.RuneCountInString(tok) < MinTokenLength {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Comparer binds a metric so taxonomy scoring can be handed around as a value
type Comparer struct {
	Metric proximity.Metric
}

// Compare scores a against b with the bound metric
func (c Comparer) Compare(a, b string) float64 {
	return Compare(a, b, c.Metric)
}
