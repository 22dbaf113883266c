package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// AbbrevRules handles address abbreviation expansion
type AbbrevRules struct {
	rules []abbrevRule
}

type abbrevRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// DefaultUSAbbreviations maps common USPS street suffix and unit
// abbreviations to their long form
var DefaultUSAbbreviations = map[string]string{
	"ST":   "STREET",
	"RD":   "ROAD",
	"AVE":  "AVENUE",
	"AV":   "AVENUE",
	"BLVD": "BOULEVARD",
	"DR":   "DRIVE",
	"LN":   "LANE",
	"CT":   "COURT",
	"PL":   "PLACE",
	"SQ":   "SQUARE",
	"TER":  "TERRACE",
	"PKWY": "PARKWAY",
	"HWY":  "HIGHWAY",
	"CIR":  "CIRCLE",
	"APT":  "APARTMENT",
	"STE":  "SUITE",
	"BLDG": "BUILDING",
	"FL":   "FLOOR",
	"N":    "NORTH",
	"S":    "SOUTH",
	"E":    "EAST",
	"W":    "WEST",
	"NE":   "NORTHEAST",
	"NW":   "NORTHWEST",
	"SE":   "SOUTHEAST",
	"SW":   "SOUTHWEST",
}

// NewAbbrevRules compiles whole-word, case-insensitive rules. An optional
// trailing dot on the abbreviation is consumed too.
func NewAbbrevRules(abbreviations map[string]string) *AbbrevRules {
	if abbreviations == nil {
		abbreviations = DefaultUSAbbreviations
	}
	abbrevs := make([]string, 0, len(abbreviations))
	for a := range abbreviations {
		abbrevs = append(abbrevs, a)
	}
	sort.Strings(abbrevs)

	rules := make([]abbrevRule, 0, len(abbrevs))
	for _, a := range abbrevs {
		rules = append(rules, abbrevRule{
			pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(a) + `\b\.?`),
			replacement: abbreviations[a],
		})
	}
	return &AbbrevRules{rules: rules}
}

// Expand upper-cases the street part of an address line, the text before
// the first comma, and applies the rules to it. City, state and zip are left
// alone so "ST" never touches a state code.
func (ar *AbbrevRules) Expand(line string) string {
	street, rest := line, ""
	if i := strings.IndexByte(line, ','); i != -1 {
		street, rest = line[:i], line[i:]
	}
	for _, r := range ar.rules {
		street = r.pattern.ReplaceAllString(street, r.replacement)
	}
	return strings.ToUpper(CollapseSpaces(street)) + rest
}

// CollapseSpaces trims s and squeezes runs of whitespace into one space
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
