package rules

import (
	"math/rand/v2"
	"slices"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceSeparators = []string{"_", "-", ".", "+", "=", "~"}

var specialChars = []rune("!@#$%&*+=~")

var insertionLetters = []rune("aeiouhrn")

var vowelConfusables = map[rune][]rune{
	'a': {'@', '4', 'α'}, 'A': {'@', '4', 'Α'},
	'e': {'3', 'ε', '€'}, 'E': {'3', 'Ε', '€'},
	'i': {'1', '!', 'ι'}, 'I': {'1', '!', 'Ι'},
	'o': {'0', 'ο', '°'}, 'O': {'0', 'Ο', '°'},
	'u': {'μ', 'υ', 'ü'}, 'U': {'Μ', 'Υ', 'Ü'},
}

// vowelScanOrder fixes which vowel gets substituted when several are
// present: the first entry here that occurs anywhere in the name wins,
// regardless of position.
var vowelScanOrder = []rune("aeiouAEIOU")

var accentOptions = map[rune][]rune{
	'a': []rune("àáâãäå"), 'A': []rune("ÀÁÂÃÄÅ"),
	'e': []rune("èéêë"), 'E': []rune("ÈÉÊË"),
	'i': []rune("ìíîï"), 'I': []rune("ÌÍÎÏ"),
	'o': []rune("òóôõö"), 'O': []rune("ÒÓÔÕÖ"),
	'u': []rune("ùúûü"), 'U': []rune("ÙÚÛÜ"),
}

// phoneticPairs is a directed list: both directions of each sound pair
// appear as separate entries, and replacement is case-sensitive over
// all occurrences.
var phoneticPairs = [][2]string{
	{"ph", "f"}, {"f", "ph"},
	{"c", "k"}, {"k", "c"},
	{"s", "z"}, {"z", "s"},
	{"i", "y"}, {"y", "i"},
	{"ck", "k"}, {"k", "ck"},
	{"th", "t"}, {"t", "th"},
	{"w", "v"}, {"v", "w"},
	{"j", "g"}, {"g", "j"},
	{"x", "ks"}, {"ks", "x"},
	{"qu", "kw"}, {"kw", "qu"},
}

var (
	titlePrefixes = []string{"Mr", "Mrs", "Ms", "Dr", "Prof"}
	titleSuffixes = []string{"Jr", "Sr", "II", "III"}
)

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// isConsonant deliberately excludes y, which counts as neither vowel
// nor consonant for transformation purposes.
func isConsonant(r rune) bool {
	return strings.ContainsRune("bcdfghjklmnpqrstvwxz", unicode.ToLower(r))
}

func reverseRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[len(rs)-1-i] = r
	}
	return out
}

func reverseStrings(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// pick returns a random option, filtering out the original name and
// duplicates first. Empty options fall back to the name itself.
func pick(rng *rand.Rand, name string, options []string) string {
	var valid []string
	for _, v := range options {
		if v != name && !slices.Contains(valid, v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return name
	}
	return valid[rng.IntN(len(valid))]
}

func replaceSpacesWithSpecialCharacters(rng *rand.Rand, name string) string {
	if !strings.Contains(name, " ") {
		return name
	}
	sep := spaceSeparators[rng.IntN(len(spaceSeparators))]
	return strings.ReplaceAll(name, " ", sep)
}

func replaceVowels(rng *rand.Rand, name string) string {
	rs := []rune(name)
	for _, v := range vowelScanOrder {
		idx := slices.Index(rs, v)
		if idx < 0 {
			continue
		}
		subs := vowelConfusables[v]
		out := slices.Clone(rs)
		out[idx] = subs[rng.IntN(len(subs))]
		return string(out)
	}
	return name
}

func deleteLetter(rng *rand.Rand, name string) string {
	rs := []rune(name)
	if len(rs) <= 2 {
		return name
	}
	i := rng.IntN(len(rs))
	return string(rs[:i]) + string(rs[i+1:])
}

func insertLetter(rng *rand.Rand, name string) string {
	rs := []rune(name)
	i := rng.IntN(len(rs) + 1)
	letter := insertionLetters[rng.IntN(len(insertionLetters))]
	out := make([]rune, 0, len(rs)+1)
	out = append(out, rs[:i]...)
	out = append(out, letter)
	out = append(out, rs[i:]...)
	return string(out)
}

func duplicateLetters(rng *rand.Rand, name string) string {
	rs := []rune(name)
	if len(rs) < 2 {
		return name
	}
	i := rng.IntN(len(rs))
	return string(rs[:i+1]) + string(rs[i:])
}

func swapRandomLetter(rng *rand.Rand, name string) string {
	rs := []rune(name)
	if len(rs) < 2 {
		return name
	}
	i := rng.IntN(len(rs) - 1)
	rs[i], rs[i+1] = rs[i+1], rs[i]
	return string(rs)
}

func shortenNameToInitials(rng *rand.Rand, name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	initials := make([]string, len(parts))
	for i, p := range parts {
		initials[i] = string(unicode.ToUpper([]rune(p)[0]))
	}
	switch rng.IntN(4) {
	case 0:
		return strings.Join(initials, ".") + "."
	case 1:
		return strings.Join(initials, "")
	case 2:
		return strings.Join(initials, " ")
	default:
		return strings.Join(initials, "-")
	}
}

func reorderNameParts(rng *rand.Rand, name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	arrangements := [][]string{
		reverseStrings(parts),
		append([]string{parts[len(parts)-1]}, parts[:len(parts)-1]...),
		append([]string{parts[0]}, reverseStrings(parts[1:])...),
	}
	for i := 0; i < 3; i++ {
		shuffled := slices.Clone(parts)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		arrangements = append(arrangements, shuffled)
	}
	options := make([]string, 0, len(arrangements))
	for _, arr := range arrangements {
		options = append(options, strings.Join(arr, " "))
	}
	return pick(rng, name, options)
}

func addSpecialCharacters(rng *rand.Rand, name string) string {
	ch := string(specialChars[rng.IntN(len(specialChars))])
	rs := []rune(name)
	switch rng.IntN(3) {
	case 0:
		return ch + name
	case 1:
		return name + ch
	default:
		if len(rs) < 2 {
			return name + ch
		}
		i := rng.IntN(len(rs)-1) + 1
		return string(rs[:i]) + ch + string(rs[i:])
	}
}

func capitalizeRandomLetters(rng *rand.Rand, name string) string {
	rs := []rune(name)
	for i, r := range rs {
		if !unicode.IsLetter(r) {
			continue
		}
		if rng.IntN(2) == 0 {
			rs[i] = unicode.ToUpper(r)
		} else {
			rs[i] = unicode.ToLower(r)
		}
	}
	return string(rs)
}

func reverseName(rng *rand.Rand, name string) string {
	rs := []rune(name)
	options := []string{string(reverseRunes(rs))}

	parts := strings.Fields(name)
	if len(parts) > 1 {
		reversed := make([]string, len(parts))
		for i, p := range parts {
			reversed[i] = string(reverseRunes([]rune(p)))
		}
		options = append(options, strings.Join(reversed, " "))
	}

	if len(rs) >= 4 {
		paired := slices.Clone(rs)
		for i := 0; i+1 < len(paired); i += 2 {
			paired[i], paired[i+1] = paired[i+1], paired[i]
		}
		options = append(options, string(paired))
	}

	return pick(rng, name, options)
}

func addAccents(rng *rand.Rand, name string) string {
	rs := []rune(name)
	for i, r := range rs {
		opts, ok := accentOptions[r]
		if !ok {
			continue
		}
		out := slices.Clone(rs)
		out[i] = opts[rng.IntN(len(opts))]
		return string(out)
	}
	return name
}

func removeAccents(rng *rand.Rand, name string) string {
	var options []string
	if t := unidecode.Unidecode(name); t != "" {
		options = append(options, t)
	}
	options = append(options, stripDiacritics(name))
	return pick(rng, name, options)
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func changeCasePattern(rng *rand.Rand, name string) string {
	rs := []rune(name)
	if len(rs) < 2 {
		return name
	}

	options := []string{cases.Title(language.Und).String(name)}

	firstLower := slices.Clone(rs)
	firstLower[0] = unicode.ToLower(firstLower[0])
	options = append(options, string(firstLower))

	parts := strings.Fields(name)
	if len(parts) > 1 {
		options = append(options, strings.ToUpper(parts[0])+" "+strings.Join(parts[1:], " "))
	}

	alternating := make([]rune, len(rs))
	for i, r := range rs {
		switch {
		case !unicode.IsLetter(r):
			alternating[i] = r
		case i%2 == 0:
			alternating[i] = unicode.ToUpper(r)
		default:
			alternating[i] = unicode.ToLower(r)
		}
	}
	options = append(options, string(alternating))

	return pick(rng, name, options)
}

func addHyphens(rng *rand.Rand, name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	options := []string{strings.Join(parts, "-")}
	if len(parts) > 2 {
		options = append(options,
			parts[0]+"-"+parts[1]+" "+strings.Join(parts[2:], " "),
			strings.Join(parts[:len(parts)-2], " ")+" "+parts[len(parts)-2]+"-"+parts[len(parts)-1],
		)
	}
	return pick(rng, name, options)
}

func removeHyphens(rng *rand.Rand, name string) string {
	if !strings.Contains(name, "-") {
		return name
	}
	if rng.IntN(2) == 0 {
		return strings.ReplaceAll(name, "-", " ")
	}
	return strings.ReplaceAll(name, "-", "")
}

func phoneticSubstitution(rng *rand.Rand, name string) string {
	lower := strings.ToLower(name)
	var options []string
	for _, pair := range phoneticPairs {
		if !strings.Contains(lower, pair[0]) {
			continue
		}
		options = append(options, strings.ReplaceAll(name, pair[0], pair[1]))
	}
	return pick(rng, name, options)
}

func doubleConsonants(rng *rand.Rand, name string) string {
	rs := []rune(name)
	var idx []int
	for i, r := range rs {
		if isConsonant(r) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return name
	}
	i := idx[rng.IntN(len(idx))]
	return string(rs[:i+1]) + string(rs[i:])
}

func simplifyConsonants(rng *rand.Rand, name string) string {
	rs := []rune(name)
	var idx []int
	for i := 0; i+1 < len(rs); i++ {
		if rs[i] == rs[i+1] && unicode.IsLetter(rs[i]) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return name
	}
	i := idx[rng.IntN(len(idx))]
	return string(rs[:i]) + string(rs[i+1:])
}

func removeRandomConsonant(rng *rand.Rand, name string) string {
	rs := []rune(name)
	if len(rs) <= 2 {
		return name
	}
	var idx []int
	for i, r := range rs {
		if isConsonant(r) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return name
	}
	i := idx[rng.IntN(len(idx))]
	return string(rs[:i]) + string(rs[i+1:])
}

func swapAdjacentConsonants(rng *rand.Rand, name string) string {
	rs := []rune(name)
	var idx []int
	for i := 0; i+1 < len(rs); i++ {
		if isConsonant(rs[i]) && isConsonant(rs[i+1]) && rs[i] != rs[i+1] {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return name
	}
	i := idx[rng.IntN(len(idx))]
	rs[i], rs[i+1] = rs[i+1], rs[i]
	return string(rs)
}

func swapAdjacentSyllables(rng *rand.Rand, name string) string {
	words := strings.Fields(name)
	type splitWord struct {
		index  int
		chunks []string
	}
	var candidates []splitWord
	for i, w := range words {
		chunks := syllableChunks(w)
		if len(chunks) >= 2 {
			candidates = append(candidates, splitWord{index: i, chunks: chunks})
		}
	}
	if len(candidates) == 0 {
		return name
	}
	chosen := candidates[rng.IntN(len(candidates))]
	i := rng.IntN(len(chosen.chunks) - 1)
	chosen.chunks[i], chosen.chunks[i+1] = chosen.chunks[i+1], chosen.chunks[i]
	words[chosen.index] = strings.Join(chosen.chunks, "")
	return strings.Join(words, " ")
}

// syllableChunks splits a word at vowel-group boundaries: each chunk
// runs through the end of a vowel group, and trailing consonants
// attach to the final chunk. "maria" splits into "ma", "ria"; "smith"
// stays whole.
func syllableChunks(word string) []string {
	rs := []rune(word)
	var chunks []string
	start := 0
	for i := 0; i < len(rs); i++ {
		if !isVowel(rs[i]) {
			continue
		}
		j := i
		for j+1 < len(rs) && isVowel(rs[j+1]) {
			j++
		}
		chunks = append(chunks, string(rs[start:j+1]))
		start = j + 1
		i = j
	}
	if start < len(rs) {
		if len(chunks) == 0 {
			return []string{word}
		}
		chunks[len(chunks)-1] += string(rs[start:])
	}
	return chunks
}

func transliterate(_ *rand.Rand, name string) string {
	t := strings.TrimSpace(unidecode.Unidecode(name))
	if t == "" || t == name {
		return name
	}
	return t
}

func addTitle(rng *rand.Rand, name string) string {
	if rng.IntN(2) == 0 {
		return titlePrefixes[rng.IntN(len(titlePrefixes))] + " " + name
	}
	return name + " " + titleSuffixes[rng.IntN(len(titleSuffixes))]
}
