package quality_test

import (
	"testing"

	"github.com/c360studio/doppel/quality"
	"github.com/stretchr/testify/assert"
)

func TestScoreKnownValues(t *testing.T) {
	tests := []struct {
		name string
		cand string
		seed string
		want float64
	}{
		// Same length, i/y sound-alike, natural surname shape.
		{"close variant", "Smyth", "Smith", 0.8916667},
		// Vowel substitution band with three of five runes shared.
		{"vowel swap", "Eron", "Aron", 0.825},
		// No character overlap, s/z keeps the phonetic band high.
		{"distant", "Zob", "Smith", 0.6},
		// Overlap and phonetics both collapse to a thin Jaccard.
		{"unrelated", "Cain", "Smith", 0.4875},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quality.Score(tt.cand, tt.seed), 1e-6)
		})
	}
}

func TestScoreStaysInRange(t *testing.T) {
	cands := []string{"", "  ", "QQZZB", "x", "JOHN", "john smith", "Wolfeschlegelsteinhausenbergerdorff"}
	for _, cand := range cands {
		got := quality.Score(cand, "John Smith")
		assert.GreaterOrEqual(t, got, 0.0, "cand %q", cand)
		assert.LessOrEqual(t, got, 1.0, "cand %q", cand)
	}
}

func TestRankOrdersBestFirst(t *testing.T) {
	ranked := quality.Rank([]string{"Zob", "Cain", "Smyth"}, "Smith")

	texts := make([]string, len(ranked))
	for i, s := range ranked {
		texts[i] = s.Text
	}
	assert.Equal(t, []string{"Smyth", "Zob", "Cain"}, texts)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

func TestRankIsStableOnTies(t *testing.T) {
	// Anagrams of the seed tie on every component.
	first := quality.Rank([]string{"Maira", "Marai"}, "Maria")
	second := quality.Rank([]string{"Marai", "Maira"}, "Maria")

	assert.Equal(t, first[0].Score, first[1].Score)
	assert.Equal(t, "Maira", first[0].Text)
	assert.Equal(t, "Marai", second[0].Text)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, quality.Rank(nil, "Smith"))
}
