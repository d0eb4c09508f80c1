// Package candidate produces name variation candidates outside the
// explicit rule catalog. Each strategy runs under an attempt budget,
// so a short or awkward seed yields fewer candidates rather than an
// error. Callers that need an exact count are expected to over-ask
// and reconcile.
package candidate

import (
	"math/rand/v2"

	"github.com/c360studio/doppel/requirement"
	"github.com/c360studio/doppel/script"
)

// Strategy names the generation family a candidate came from.
type Strategy string

const (
	StrategyPhonetic        Strategy = "phonetic"
	StrategyOrthographic    Strategy = "orthographic"
	StrategyScript          Strategy = "script"
	StrategyTransliteration Strategy = "transliteration"
	StrategyLLM             Strategy = "llm"
)

// Candidate is a raw variation before quality filtering.
type Candidate struct {
	Text     string
	Strategy Strategy
}

// Generator derives candidates from a seed name. All randomness comes
// from the injected source, so a fixed seed replays the same output.
// A Generator is cheap to construct per request and is not safe for
// concurrent use.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Batch allocates n candidates across strategies using the similarity
// distributions of the request: 40% of the summed phonetic weight goes
// to phonetic edits, likewise for orthographic, and the remainder is
// split between transliteration and in-script perturbation for
// non-Latin seeds or handed to orthographic edits for Latin ones.
func (g *Generator) Batch(seed string, n int, req requirement.Requirement) []Candidate {
	if n <= 0 {
		return nil
	}
	sc := script.Detect(seed)

	phonShare := int(float64(n) * distSum(req.Phonetic) * 0.4)
	orthoShare := int(float64(n) * distSum(req.Orthographic) * 0.4)
	if phonShare > n {
		phonShare = n
	}
	if phonShare+orthoShare > n {
		orthoShare = n - phonShare
	}

	out := make([]Candidate, 0, n)
	phonCounts := requirement.SimilarityCounts(phonShare, req.Phonetic)
	for _, lv := range requirement.Levels() {
		out = append(out, g.Phonetic(seed, phonCounts[lv], lv)...)
	}
	orthoCounts := requirement.SimilarityCounts(orthoShare, req.Orthographic)
	for _, lv := range requirement.Levels() {
		out = append(out, g.Orthographic(seed, orthoCounts[lv], lv)...)
	}

	// Shortfall from the weighted phases rolls into the remainder so
	// the batch lands as close to n as the seed allows.
	remaining := n - len(out)
	if remaining <= 0 {
		return out
	}
	if sc == script.Latin {
		return append(out, g.Orthographic(seed, remaining, requirement.Medium)...)
	}
	translitN := remaining / 2
	out = append(out, g.Transliterate(seed, sc, translitN)...)
	out = append(out, g.ScriptNative(seed, sc, remaining-translitN)...)
	return out
}

func distSum(dist map[requirement.Level]float64) float64 {
	var sum float64
	for _, f := range dist {
		sum += f
	}
	return sum
}
