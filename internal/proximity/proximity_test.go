package proximity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allMetrics(t *testing.T) map[string]Metric {
	t.Helper()
	out := map[string]Metric{}
	for _, name := range Names() {
		m, err := Lookup(name)
		require.NoError(t, err)
		out[name] = m
	}
	return out
}

func TestEmptyInputScoresZero(t *testing.T) {
	for name, m := range allMetrics(t) {
		t.Run(name, func(t *testing.T) {
			assert.Zero(t, m.Proximity("", ""))
			assert.Zero(t, m.Proximity("SMITH", ""))
			assert.Zero(t, m.Proximity("", "SMITH"))
		})
	}
}

func TestIdenticalScoresOne(t *testing.T) {
	for name, m := range allMetrics(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 1.0, m.Proximity("JOHN SMITH", "JOHN SMITH"))
		})
	}
}

func TestSymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("ABCDEFG HIJ")
	word := func() string {
		n := 1 + rng.Intn(10)
		r := make([]rune, n)
		for i := range r {
			r[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(r)
	}

	for name, m := range allMetrics(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				a, b := word(), word()
				ab, ba := m.Proximity(a, b), m.Proximity(b, a)
				assert.InDelta(t, ab, ba, 1e-12, "%q vs %q", a, b)
				assert.GreaterOrEqual(t, ab, 0.0)
				assert.LessOrEqual(t, ab, 1.0)
			}
		})
	}
}

func TestJaroWinklerRewardsSharedPrefix(t *testing.T) {
	name := JaroWinkler.Proximity("JOHN SMITH", "JON SMITH")
	plain := Jaro.Proximity("JOHN SMITH", "JON SMITH")
	assert.Greater(t, name, plain)
	assert.Greater(t, name, 0.85)
}

func TestJaroKnownValue(t *testing.T) {
	// classic MARTHA / MARHTA example
	assert.InDelta(t, 0.944, Jaro.Proximity("MARTHA", "MARHTA"), 0.001)
	assert.InDelta(t, 0.961, JaroWinkler.Proximity("MARTHA", "MARHTA"), 0.001)
}

func TestLevenshtein(t *testing.T) {
	assert.InDelta(t, 1-1.0/6.0, Levenshtein.Proximity("KITTEN", "SITTEN"), 1e-9)
	assert.Zero(t, Levenshtein.Proximity("ABC", "XYZ"))
}

func TestLookup(t *testing.T) {
	m, err := Lookup(" Jaro-Winkler ")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Proximity("A", "A"))

	_, err = Lookup("soundex")
	assert.Error(t, err)
}
