package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mdm-linkage/internal/matrix"
	"github.com/mdm-linkage/internal/record"
)

func TestFilterDropsOversizedGroups(t *testing.T) {
	m := matrix.Matrix{
		{Lo: 1, Hi: 2}: 0.9,
		{Lo: 1, Hi: 3}: 0.9,
		{Lo: 1, Hi: 4}: 0.9,
		{Lo: 1, Hi: 5}: 0.9,
		{Lo: 2, Hi: 3}: 0.85,
		{Lo: 2, Hi: 4}: 0.95,
		{Lo: 7, Hi: 8}: 1,
	}

	got, stats := Filter(m, 3)
	assert.Equal(t, []matrix.Result{
		{Lo: 2, Hi: 3, Score: 0.85},
		{Lo: 2, Hi: 4, Score: 0.95},
		{Lo: 7, Hi: 8, Score: 1},
	}, got)
	assert.Equal(t, Stats{Groups: 3, DroppedGroups: 1, DroppedPairs: 4}, stats)
}

func TestFilterKeepsGroupAtCap(t *testing.T) {
	m := matrix.Matrix{{Lo: 1, Hi: 2}: 1, {Lo: 1, Hi: 3}: 1, {Lo: 1, Hi: 4}: 1}
	got, _ := Filter(m, 3)
	assert.Len(t, got, 3)

	got, _ = Filter(m, 2)
	assert.Empty(t, got)
}

func TestFilterFirstAndLastGroups(t *testing.T) {
	m := matrix.Matrix{}
	for hi := record.ID(2); hi <= 6; hi++ {
		m[matrix.PairKey{Lo: 1, Hi: hi}] = 1
	}
	m[matrix.PairKey{Lo: 3, Hi: 4}] = 1
	for hi := record.ID(10); hi <= 14; hi++ {
		m[matrix.PairKey{Lo: 9, Hi: hi}] = 1
	}

	got, stats := Filter(m, DefaultAmbiguityCap)
	assert.Equal(t, []matrix.Result{{Lo: 3, Hi: 4, Score: 1}}, got)
	assert.Equal(t, 2, stats.DroppedGroups)
}

func TestFilterProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	for round := 0; round < 50; round++ {
		m := matrix.New()
		for i := 0; i < 60; i++ {
			lo := record.ID(rng.Intn(10) + 1)
			hi := lo + record.ID(rng.Intn(10)+1)
			m[matrix.PairKey{Lo: lo, Hi: hi}] = rng.Float64()
		}
		ambiguityCap := rng.Intn(5) + 1
		counts := Counts(m)

		got, _ := Filter(m, ambiguityCap)
		for _, r := range got {
			assert.LessOrEqual(t, counts[r.Lo], ambiguityCap)
			assert.Equal(t, m[matrix.PairKey{Lo: r.Lo, Hi: r.Hi}], r.Score)
		}
		for lo, n := range counts {
			if n > ambiguityCap {
				for _, r := range got {
					assert.NotEqual(t, lo, r.Lo)
				}
			}
		}
	}
}

func TestFilterEmpty(t *testing.T) {
	got, stats := Filter(matrix.New(), 0)
	assert.Empty(t, got)
	assert.Zero(t, stats)
}
