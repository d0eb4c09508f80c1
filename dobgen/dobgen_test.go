package dobgen_test

import (
	"math/rand/v2"
	"testing"

	"github.com/c360studio/doppel/dobgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(seed uint64) *dobgen.Generator {
	return dobgen.NewGenerator(rand.New(rand.NewPCG(seed, seed)), nil)
}

func TestVariationsBands(t *testing.T) {
	out := newGenerator(1).Variations("1990-06-15", 30)
	require.Len(t, out, 30)

	near := []string{"1990-06-13", "1990-06-14", "1990-06-16", "1990-06-17"}
	month := []string{"1990-05-16", "1990-05-18", "1990-07-13", "1990-07-15"}
	year := []string{"1989-06-15", "1991-06-15"}
	partial := []string{"1990-06", "1990"}

	for i, v := range out {
		switch {
		case i < 10:
			assert.Contains(t, near, v, "index %d", i)
		case i < 20:
			assert.Contains(t, month, v, "index %d", i)
		case i < 25:
			assert.Contains(t, year, v, "index %d", i)
		default:
			assert.Contains(t, partial, v, "index %d", i)
		}
	}
}

func TestVariationsAcceptedLayouts(t *testing.T) {
	// Every layout of 15 June 1990 must normalize to ISO output.
	inputs := []string{"1990-06-15", "1990/06/15", "15-06-1990", "15/06/1990"}
	for _, seed := range inputs {
		out := newGenerator(2).Variations(seed, 1)
		require.Len(t, out, 1, "seed %q", seed)
		assert.Contains(t, []string{"1990-06-13", "1990-06-14", "1990-06-16", "1990-06-17"},
			out[0], "seed %q", seed)
	}
}

func TestVariationsDayFirstWinsAmbiguity(t *testing.T) {
	// 05-04-1990 reads as 5 April, not 4 May.
	out := newGenerator(3).Variations("05-04-1990", 1)
	require.Len(t, out, 1)
	assert.Contains(t, []string{"1990-04-03", "1990-04-04", "1990-04-06", "1990-04-07"}, out[0])
}

func TestVariationsMonthFirstFallback(t *testing.T) {
	// A month beyond 12 in the first slot forces the US layout.
	out := newGenerator(4).Variations("04-15-1990", 1)
	require.Len(t, out, 1)
	assert.Contains(t, []string{"1990-04-13", "1990-04-14", "1990-04-16", "1990-04-17"}, out[0])
}

func TestVariationsUnparseableSeedEchoes(t *testing.T) {
	out := newGenerator(5).Variations("unknown", 5)
	assert.Equal(t, []string{"unknown", "unknown", "unknown", "unknown", "unknown"}, out)
}

func TestVariationsZeroCount(t *testing.T) {
	assert.Nil(t, newGenerator(6).Variations("1990-06-15", 0))
}

func TestVariationsDeterministicUnderFixedSeed(t *testing.T) {
	first := newGenerator(42).Variations("1985-12-01", 30)
	second := newGenerator(42).Variations("1985-12-01", 30)
	assert.Equal(t, first, second)
}
