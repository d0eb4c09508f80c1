package candidate

import (
	"slices"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"github.com/c360studio/doppel/requirement"
)

// phoneticEdits are directed sound-alike substitutions. Matching is
// case-insensitive; the replacement inherits the case of the first
// rune it replaces.
var phoneticEdits = [][2]string{
	{"ph", "f"}, {"f", "ph"},
	{"c", "k"}, {"k", "c"},
	{"s", "z"}, {"z", "s"},
	{"i", "y"}, {"y", "i"},
	{"ck", "k"},
}

// mediumJaroWinkler is the floor for medium-distance phonetic
// candidates. Light candidates must keep the seed's Soundex class
// instead; far candidates are unconstrained.
const mediumJaroWinkler = 0.75

// Phonetic derives sound-alike candidates from the seed. The level
// steers how many edits are stacked and which similarity band the
// result must land in. The attempt budget is three per requested
// candidate.
func (g *Generator) Phonetic(seed string, n int, level requirement.Level) []Candidate {
	if n <= 0 {
		return nil
	}
	out := make([]Candidate, 0, n)
	seen := make(map[string]struct{}, n)
	for attempts := 0; len(out) < n && attempts < 3*n; attempts++ {
		cand := g.phoneticVariant(seed, level)
		if cand == "" || strings.EqualFold(cand, seed) {
			continue
		}
		key := strings.ToLower(cand)
		if _, dup := seen[key]; dup {
			continue
		}
		if !phoneticBandOK(cand, seed, level) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Text: cand, Strategy: StrategyPhonetic})
	}
	return out
}

func (g *Generator) phoneticVariant(seed string, level requirement.Level) string {
	text := seed
	for i := 0; i < g.phoneticRounds(level); i++ {
		products := phoneticProducts(text)
		if len(products) == 0 {
			break
		}
		text = products[g.rng.IntN(len(products))]
	}
	if strings.EqualFold(text, seed) {
		return ""
	}
	return text
}

func (g *Generator) phoneticRounds(level requirement.Level) int {
	switch level {
	case requirement.Light:
		return 1
	case requirement.Medium:
		return 1 + g.rng.IntN(2)
	default:
		return 2 + g.rng.IntN(2)
	}
}

// phoneticProducts lists every single-edit neighbor of text: one
// substitution from the edit table at its first occurrence, or one
// collapsed double letter.
func phoneticProducts(text string) []string {
	original := []rune(text)
	lower := make([]rune, len(original))
	for i, r := range original {
		lower[i] = unicode.ToLower(r)
	}

	var products []string
	for _, p := range phoneticEdits {
		old := []rune(p[0])
		i := runeIndex(lower, old)
		if i < 0 {
			continue
		}
		rep := []rune(p[1])
		if unicode.IsUpper(original[i]) {
			rep = slices.Clone(rep)
			rep[0] = unicode.ToUpper(rep[0])
		}
		products = append(products, string(original[:i])+string(rep)+string(original[i+len(old):]))
	}
	for i := 1; i < len(original); i++ {
		if lower[i] == lower[i-1] && unicode.IsLetter(original[i]) {
			products = append(products, string(original[:i])+string(original[i+1:]))
		}
	}
	return products
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func phoneticBandOK(cand, seed string, level requirement.Level) bool {
	switch level {
	case requirement.Light:
		return soundexKey(cand) == soundexKey(seed)
	case requirement.Medium:
		return matchr.JaroWinkler(strings.ToLower(cand), strings.ToLower(seed), false) >= mediumJaroWinkler
	default:
		return true
	}
}

// soundexKey codes each word separately so multi-part names compare
// part by part.
func soundexKey(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = matchr.Soundex(f)
	}
	return strings.Join(fields, " ")
}
