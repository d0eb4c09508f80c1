package candidate

import (
	"slices"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"github.com/c360studio/doppel/requirement"
)

// confusables maps a letter to glyphs it is commonly mistyped or
// spoofed as. Replacements for an uppercase rune are uppercased.
var confusables = map[rune][]rune{
	'a': {'@', 'α', 'à', 'á', 'â', 'ã'},
	'e': {'3', 'ε', 'è', 'é', 'ê', 'ë'},
	'i': {'1', 'l', 'ì', 'í', 'î', 'ï'},
	'o': {'0', 'ο', 'ò', 'ó', 'ô', 'õ'},
	's': {'$', '5', 'ş', 'š'},
	't': {'+', '7', 'ţ', 'ť'},
	'l': {'1', 'I', 'ł'},
	'g': {'9', 'q', 'ğ'},
	'n': {'ñ', 'ň'},
	'c': {'ç', 'č'},
	'u': {'ù', 'ú', 'û', 'ü'},
	'z': {'ž', 'ź', 'ż'},
}

// orthoInsertions are the letters a stray keystroke plausibly adds.
var orthoInsertions = []rune("aeiouhrn")

const (
	opSubstitute = iota
	opInsert
	opDelete
	opTranspose
)

// Orthographic derives typo-class candidates: confusable glyph
// substitution, insertion, deletion, and adjacent transposition. The
// level maps to Damerau-Levenshtein distance from the seed (light 1,
// medium 2, far 3 or more). The attempt budget is five per requested
// candidate.
func (g *Generator) Orthographic(seed string, n int, level requirement.Level) []Candidate {
	if n <= 0 {
		return nil
	}
	out := make([]Candidate, 0, n)
	seen := make(map[string]struct{}, n)
	for attempts := 0; len(out) < n && attempts < 5*n; attempts++ {
		cand := g.orthographicVariant(seed, level)
		if cand == "" || strings.EqualFold(cand, seed) {
			continue
		}
		key := strings.ToLower(cand)
		if _, dup := seen[key]; dup {
			continue
		}
		if !orthoBandOK(cand, seed, level) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Text: cand, Strategy: StrategyOrthographic})
	}
	return out
}

func (g *Generator) orthographicVariant(seed string, level requirement.Level) string {
	rs := []rune(seed)
	for i := 0; i < g.orthoRounds(level); i++ {
		rs = g.orthographicEdit(rs)
	}
	return string(rs)
}

func (g *Generator) orthoRounds(level requirement.Level) int {
	switch level {
	case requirement.Light:
		return 1
	case requirement.Medium:
		return 2
	default:
		return 3 + g.rng.IntN(2)
	}
}

// orthographicEdit applies one random edit of a random applicable
// kind and returns the new rune slice.
func (g *Generator) orthographicEdit(rs []rune) []rune {
	var subPos []int
	for i, r := range rs {
		if _, ok := confusables[unicode.ToLower(r)]; ok {
			subPos = append(subPos, i)
		}
	}
	var swapPos []int
	for i := 0; i+1 < len(rs); i++ {
		if rs[i] != rs[i+1] {
			swapPos = append(swapPos, i)
		}
	}

	kinds := make([]int, 0, 4)
	if len(subPos) > 0 {
		kinds = append(kinds, opSubstitute)
	}
	kinds = append(kinds, opInsert)
	if len(rs) > 2 {
		kinds = append(kinds, opDelete)
	}
	if len(swapPos) > 0 {
		kinds = append(kinds, opTranspose)
	}

	switch kinds[g.rng.IntN(len(kinds))] {
	case opSubstitute:
		i := subPos[g.rng.IntN(len(subPos))]
		opts := confusables[unicode.ToLower(rs[i])]
		rep := opts[g.rng.IntN(len(opts))]
		if unicode.IsUpper(rs[i]) {
			rep = unicode.ToUpper(rep)
		}
		out := slices.Clone(rs)
		out[i] = rep
		return out
	case opDelete:
		i := g.rng.IntN(len(rs))
		return append(slices.Clone(rs[:i]), rs[i+1:]...)
	case opTranspose:
		i := swapPos[g.rng.IntN(len(swapPos))]
		out := slices.Clone(rs)
		out[i], out[i+1] = out[i+1], out[i]
		return out
	default:
		i := g.rng.IntN(len(rs) + 1)
		letter := orthoInsertions[g.rng.IntN(len(orthoInsertions))]
		out := make([]rune, 0, len(rs)+1)
		out = append(out, rs[:i]...)
		out = append(out, letter)
		return append(out, rs[i:]...)
	}
}

func orthoBandOK(cand, seed string, level requirement.Level) bool {
	switch d := matchr.DamerauLevenshtein(cand, seed); level {
	case requirement.Light:
		return d == 1
	case requirement.Medium:
		return d == 2
	default:
		return d >= 3
	}
}
