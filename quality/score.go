package quality

import (
	"sort"
	"strings"
	"unicode"
)

// Scored pairs a candidate with its quality score.
type Scored struct {
	Text  string
	Score float64
}

// scorerPhoneticPairs drive the 0.9 band: when one side carries the
// first spelling and the other side the second, the two are treated
// as sound-alike.
var scorerPhoneticPairs = [][2]string{
	{"ph", "f"}, {"c", "k"}, {"s", "z"}, {"i", "y"},
	{"ck", "k"}, {"th", "t"}, {"w", "v"}, {"j", "g"},
}

var vowelSubstitutions = [][2]string{{"a", "e"}, {"i", "y"}, {"o", "u"}}

var surnameEndings = []string{"son", "sen", "ton", "man", "er", "ly", "th", "te", "ne"}

var rareDigraphs = []string{"qq", "xx", "zz", "jj", "kk"}

// Score rates cand against seed with four equally weighted
// components: length closeness, character overlap, phonetic
// closeness, and naturalness. Results land in [0,1].
func Score(cand, seed string) float64 {
	return 0.25*lengthScore(cand, seed) +
		0.25*charOverlap(strings.ToLower(cand), strings.ToLower(seed)) +
		0.25*phoneticScore(cand, seed) +
		0.25*naturalness(cand, seed)
}

// Rank scores every candidate and sorts best-first. The sort is
// stable, so equal scores keep their generation order.
func Rank(cands []string, seed string) []Scored {
	out := make([]Scored, len(cands))
	for i, c := range cands {
		out[i] = Scored{Text: c, Score: Score(c, seed)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func lengthScore(cand, seed string) float64 {
	switch abs(len([]rune(cand)) - len([]rune(seed))) {
	case 0:
		return 1.0
	case 1:
		return 0.8
	case 2:
		return 0.6
	case 3:
		return 0.4
	default:
		return 0.0
	}
}

// charOverlap is the Jaccard index of the two rune sets. Inputs are
// expected lowercased.
func charOverlap(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := runeSet(a)
	setB := runeSet(b)
	inter := 0
	union := len(setB)
	for r := range setA {
		if _, ok := setB[r]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

func phoneticScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	al, bl := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range scorerPhoneticPairs {
		if strings.Contains(al, pair[0]) && strings.Contains(bl, pair[1]) {
			return 0.9
		}
		if strings.Contains(al, pair[1]) && strings.Contains(bl, pair[0]) {
			return 0.9
		}
	}
	for _, pair := range vowelSubstitutions {
		if strings.Contains(al, pair[0]) && strings.Contains(bl, pair[1]) {
			return 0.8
		}
		if strings.Contains(al, pair[1]) && strings.Contains(bl, pair[0]) {
			return 0.8
		}
	}
	return charOverlap(al, bl)
}

func naturalness(cand, seed string) float64 {
	score := 0.5
	if isTitleCase(cand) {
		score += 0.2
	}
	if n := len([]rune(cand)); n >= 2 && n <= 20 {
		score += 0.1
	}
	lower := strings.ToLower(cand)
	for _, ending := range surnameEndings {
		if strings.HasSuffix(lower, ending) {
			score += 0.1
			break
		}
	}
	for _, digraph := range rareDigraphs {
		if strings.Contains(lower, digraph) {
			score -= 0.2
			break
		}
	}
	if len(strings.Fields(cand)) == len(strings.Fields(seed)) {
		score += 0.1
	}
	return min(max(score, 0), 1)
}

// isTitleCase requires every cased run to start uppercase and
// continue lowercase, with at least one cased character present.
func isTitleCase(s string) bool {
	hasCased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			hasCased = true
			prevCased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
		default:
			prevCased = false
		}
	}
	return hasCased
}
