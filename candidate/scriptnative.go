package candidate

import (
	"slices"
	"strings"

	"github.com/c360studio/doppel/script"
)

// segmentConnectors join name parts in place of spaces.
var segmentConnectors = []string{"-", "_", "."}

// ScriptNative perturbs the seed inside its own writing system. CJK
// seeds get character-level edits; everything else gets segment-level
// rearrangement. The pool of distinct perturbations is small, so the
// result is often shorter than n.
func (g *Generator) ScriptNative(seed string, sc script.Script, n int) []Candidate {
	if n <= 0 {
		return nil
	}
	var pool []string
	if sc == script.CJK {
		pool = g.cjkPerturbations(seed)
	} else {
		pool = segmentPerturbations(seed)
	}

	uniq := make([]string, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, p := range pool {
		if p == "" || strings.EqualFold(p, seed) {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, p)
	}

	g.rng.Shuffle(len(uniq), func(i, j int) { uniq[i], uniq[j] = uniq[j], uniq[i] })
	if len(uniq) > n {
		uniq = uniq[:n]
	}
	out := make([]Candidate, len(uniq))
	for i, text := range uniq {
		out[i] = Candidate{Text: text, Strategy: StrategyScript}
	}
	return out
}

func segmentPerturbations(seed string) []string {
	out := []string{reverseRunes(seed)}
	parts := strings.Fields(seed)
	if len(parts) < 2 {
		return out
	}

	swapped := slices.Clone(parts)
	swapped[0], swapped[len(swapped)-1] = swapped[len(swapped)-1], swapped[0]
	out = append(out, strings.Join(swapped, " "), strings.Join(parts, ""))
	for _, c := range segmentConnectors {
		out = append(out, strings.Join(parts, c))
	}
	return out
}

func (g *Generator) cjkPerturbations(seed string) []string {
	rs := []rune(seed)
	if len(rs) < 2 {
		return nil
	}
	var out []string
	for i := 0; i < 3; i++ {
		p := g.rng.IntN(len(rs))
		out = append(out, string(rs[:p])+string(rs[p+1:]))
	}
	for i := 0; i < 2; i++ {
		p := g.rng.IntN(len(rs))
		out = append(out, string(rs[:p+1])+string(rs[p:]))
	}
	for i := 0; i < 2; i++ {
		shuffled := slices.Clone(rs)
		g.rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		out = append(out, string(shuffled))
	}
	return out
}

func reverseRunes(s string) string {
	rs := []rune(s)
	slices.Reverse(rs)
	return string(rs)
}
