package address

import (
	"fmt"
	"strings"
)

// Parser names accepted by NewParser
const (
	ParserPositional = "positional"
	ParserLibpostal  = "libpostal"
)

// NewParser returns the parser registered under name
func NewParser(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ParserPositional:
		return Positional, nil
	case ParserLibpostal:
		if !LibpostalAvailable {
			return nil, fmt.Errorf("address parser %q requested but binary built without the libpostal tag", name)
		}
		return Libpostal, nil
	default:
		return nil, fmt.Errorf("unknown address parser %q", name)
	}
}
