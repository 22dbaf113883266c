// Package address parses free-text US postal address lines into structured
// fields and scores two addresses against each other.
package address

import (
	"strings"

	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/proximity"
)

// Field weights of the address score
const (
	StreetWeight = 0.45
	CityWeight   = 0.25
	StateWeight  = 0.25
	Zip5Weight   = 0.05
)

// Address is the simplified representation of a US postal address
type Address struct {
	Street string
	City   string
	State  string
	Zip5   string // exactly 5 digits, left zero padded
	Zip4   string // optional extension
}

// Parser turns a raw address line into an Address
type Parser interface {
	Parse(line string) (Address, error)
}

// ParserFunc adapts a function to Parser
type ParserFunc func(line string) (Address, error)

// Parse implements Parser
func (f ParserFunc) Parse(line string) (Address, error) { return f(line) }

// Positional is the comma-position parser:
//
//	1635 CLIFTON RD NE, BUILDING A, ATLANTA, GA 30322-0001, US
//	1 MAIN ST, SPRINGFIELD, IL 62701
var Positional Parser = ParserFunc(Parse)

var noise = "-.#"

// FilterNoise strips leading noise characters and surrounding whitespace
func FilterNoise(line string) string {
	line = strings.TrimSpace(line)
	return strings.TrimSpace(strings.TrimLeft(line, noise))
}

// Parse parses a line with the positional rule. The street is the first
// comma token, the city the third from last and the "STATE ZIP" token the
// second from last. A line whose last token already is a "STATE ZIP" token
// carries no country suffix, so both positions shift by one.
func Parse(line string) (Address, error) {
	tokens := strings.Split(line, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	n := len(tokens)
	if n < 3 {
		return Address{}, faults.Malformed("address.parse", "need at least 3 comma separated tokens, got %d in %q", n, line)
	}

	cityIdx, stateZipIdx := n-3, n-2
	if isStateZip(tokens[n-1]) {
		cityIdx, stateZipIdx = n-2, n-1
	}

	state, zip5, zip4, err := parseStateZip(tokens[stateZipIdx])
	if err != nil {
		return Address{}, faults.Malformed("address.parse", "%v in %q", err, line)
	}

	return Address{
		Street: tokens[0],
		City:   tokens[cityIdx],
		State:  state,
		Zip5:   zip5,
		Zip4:   zip4,
	}, nil
}

// GA 30322-0001
func parseStateZip(token string) (state, zip5, zip4 string, err error) {
	fields := strings.Fields(token)
	if len(fields) < 2 {
		return "", "", "", faults.Malformed("address.state_zip", "cannot split %q into state and zip", token)
	}
	state = fields[0]
	zip := fields[1]
	if i := strings.IndexByte(zip, '-'); i != -1 {
		zip5, zip4 = zip[:i], zip[i+1:]
	} else {
		zip5 = zip
	}
	return state, PadZip5(zip5), zip4, nil
}

func isStateZip(token string) bool {
	fields := strings.Fields(token)
	if len(fields) != 2 {
		return false
	}
	c := fields[1][0]
	return c >= '0' && c <= '9'
}

// PadZip5 left pads a zip code with zeros to 5 characters
func PadZip5(zip string) string {
	if len(zip) >= 5 {
		return zip
	}
	return strings.Repeat("0", 5-len(zip)) + zip
}

// Compare scores two parsed addresses
func Compare(a, b Address, m proximity.Metric) float64 {
	street := m.Proximity(a.Street, b.Street)
	city := m.Proximity(a.City, b.City)

	var state, zip float64
	if strings.EqualFold(a.State, b.State) {
		state = 1
	}
	if strings.EqualFold(a.Zip5, b.Zip5) {
		zip = 1
	}

	return street*StreetWeight + city*CityWeight + state*StateWeight + zip*Zip5Weight
}
