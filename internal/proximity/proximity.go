// Package proximity provides the normalized string similarity strategies used
// by every field comparator. All metrics return a value in [0,1], are
// symmetric, and score an empty operand as 0.
package proximity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Metric compares two field values
type Metric interface {
	Proximity(a, b string) float64
}

// Func adapts a plain function to Metric
type Func func(a, b string) float64

// Proximity implements Metric. Operands are put in a fixed order first so
// the result is symmetric even where the underlying algorithm is greedy.
func (f Func) Proximity(a, b string) float64 {
	if b < a {
		a, b = b, a
	}
	return f(a, b)
}

// Winkler boost parameters for the prefix weighted name metric.
const (
	WinklerBoostThreshold = 0.7
	WinklerPrefixSize     = 4
)

// Metric names accepted in configuration
const (
	JaroWinklerName  = "jaro-winkler"
	JaroName         = "jaro"
	LevenshteinName  = "levenshtein"
	SorensenDiceName = "sorensen-dice"
	JaccardName      = "jaccard"
)

// JaroWinkler is the prefix weighted metric used for names
var JaroWinkler Metric = Func(func(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return clamp(smetrics.JaroWinkler(a, b, WinklerBoostThreshold, WinklerPrefixSize))
})

// Jaro is the plain metric used for addresses and taxonomy tokens
var Jaro Metric = Func(func(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return clamp(smetrics.Jaro(a, b))
})

// Levenshtein scores 1 - distance / longest length, counted in runes
var Levenshtein Metric = Func(func(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	return clamp(1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest))
})

// SorensenDice is a bigram overlap metric, tolerant to token reordering
var SorensenDice Metric = ngram(func() strutil.StringMetric {
	m := metrics.NewSorensenDice()
	m.CaseSensitive = true
	m.NgramSize = 2
	return m
})

// Jaccard is a bigram set metric, tolerant to token reordering
var Jaccard Metric = ngram(func() strutil.StringMetric {
	m := metrics.NewJaccard()
	m.CaseSensitive = true
	m.NgramSize = 2
	return m
})

// strutil metric values keep no state between calls, but are built per call
// so no instance is ever shared across goroutines.
func ngram(build func() strutil.StringMetric) Metric {
	return Func(func(a, b string) float64 {
		if a == "" || b == "" {
			return 0
		}
		if a == b {
			return 1
		}
		return clamp(strutil.Similarity(a, b, build()))
	})
}

var registry = map[string]Metric{
	JaroWinklerName:  JaroWinkler,
	JaroName:         Jaro,
	LevenshteinName:  Levenshtein,
	SorensenDiceName: SorensenDice,
	JaccardName:      Jaccard,
}

// Lookup resolves a configured metric name
func Lookup(name string) (Metric, error) {
	m, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown proximity metric %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the registered metric names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
