package candidate

import (
	"strings"

	"github.com/c360studio/doppel/requirement"
	"github.com/c360studio/doppel/script"
	"github.com/mozillazg/go-unidecode"
)

// Transliterate renders a non-Latin seed in Latin letters and pads
// the plain transliteration with medium-distance phonetic and
// orthographic edits of it. Latin seeds yield nothing.
func (g *Generator) Transliterate(seed string, sc script.Script, n int) []Candidate {
	if n <= 0 || sc == script.Latin {
		return nil
	}
	base := strings.TrimSpace(unidecode.Unidecode(seed))
	if base == "" || strings.EqualFold(base, seed) {
		return nil
	}

	out := make([]Candidate, 0, n)
	seen := make(map[string]struct{}, n)
	add := func(text string) {
		if len(out) >= n || strings.EqualFold(text, seed) {
			return
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Text: text, Strategy: StrategyTransliteration})
	}

	add(base)
	if len(out) >= n {
		return out
	}
	for _, c := range g.Phonetic(base, (n-len(out))/2, requirement.Medium) {
		add(c.Text)
	}
	for _, c := range g.Orthographic(base, n-len(out), requirement.Medium) {
		add(c.Text)
	}
	return out
}
