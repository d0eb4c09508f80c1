// Package quality screens and ranks name variation candidates. The
// acceptance predicate is deliberately strict: generators overproduce
// and the filter throws away anything that looks like an address, a
// date, a placeholder, or a near-duplicate of something already kept.
package quality

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultLengthTolerance is the maximum character-count difference a
// candidate may have from its seed.
const DefaultLengthTolerance = 3

var digitPattern = regexp.MustCompile(`\d`)

var addressIndicatorPattern = regexp.MustCompile(`\b(?:street|st|avenue|ave|road|rd|drive|dr|lane|ln|court|ct|place|pl|boulevard|blvd|apt|apartment|suite|unit|floor|building|north|south|east|west|n|s|e|w|p\.o\.|po|box|city|town|zip)\b`)

var monthPattern = regexp.MustCompile(`\b(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\b`)

var dateWordPattern = regexp.MustCompile(`\b(?:birth|birthday|born|date|dob|age|year|old)\b`)

var genericWords = map[string]struct{}{
	"unknown": {}, "none": {}, "null": {}, "n/a": {}, "na": {},
	"test": {}, "example": {}, "sample": {}, "temp": {}, "dummy": {},
	"default": {}, "user": {}, "admin": {}, "name": {}, "identity": {},
	"person": {}, "individual": {}, "subject": {},
}

const forbiddenChars = "_#@$%^&*()[]{}|\\/<>?!~`+="

// nicknamePairs lists substitutions that read as the same person.
// Matching is substring containment in either direction.
var nicknamePairs = [][2]string{
	{"john", "jon"}, {"michael", "mike"}, {"william", "will"},
	{"robert", "rob"}, {"james", "jim"}, {"richard", "rick"},
	{"smith", "smyth"}, {"johnson", "jonson"}, {"brown", "browne"},
}

// Seen tracks accepted variations case-insensitively for duplicate
// and near-duplicate screening.
type Seen struct {
	lower []string
	index map[string]struct{}
}

// NewSeen returns an empty accepted set.
func NewSeen() *Seen {
	return &Seen{index: make(map[string]struct{})}
}

// Add records v as accepted.
func (s *Seen) Add(v string) {
	key := strings.ToLower(v)
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = struct{}{}
	s.lower = append(s.lower, key)
}

// Has reports whether v was already accepted, ignoring case.
func (s *Seen) Has(v string) bool {
	_, ok := s.index[strings.ToLower(v)]
	return ok
}

// Len returns the number of accepted entries.
func (s *Seen) Len() int {
	return len(s.lower)
}

// Filter holds the acceptance predicate configuration.
type Filter struct {
	// LengthTolerance caps abs(len(candidate) - len(seed)) in
	// characters. Zero means DefaultLengthTolerance.
	LengthTolerance int
}

// NewFilter returns a filter with default tolerances.
func NewFilter() *Filter {
	return &Filter{LengthTolerance: DefaultLengthTolerance}
}

func (f *Filter) tolerance() int {
	if f.LengthTolerance > 0 {
		return f.LengthTolerance
	}
	return DefaultLengthTolerance
}

// Accept runs the ordered acceptance predicate: a candidate passes
// when it is not the seed, not yet accepted, close in length, free of
// address, date, and placeholder smells, structurally similar to the
// seed, and not a near-duplicate of anything in seen. Checks
// short-circuit in that order.
func (f *Filter) Accept(cand, seed string, seen *Seen) bool {
	if strings.TrimSpace(cand) == "" {
		return false
	}
	if strings.EqualFold(cand, seed) {
		return false
	}
	if seen != nil && seen.Has(cand) {
		return false
	}

	candLen := len([]rune(cand))
	seedLen := len([]rune(seed))
	if abs(candLen-seedLen) > f.tolerance() {
		return false
	}

	if looksLikeAddress(cand) {
		return false
	}
	if looksLikeDate(cand) {
		return false
	}
	if hasProblematicPattern(cand) {
		return false
	}

	if abs(len(strings.Fields(cand))-len(strings.Fields(seed))) > 1 {
		return false
	}

	if seen != nil && tooSimilarToAccepted(cand, seen) {
		return false
	}

	return true
}

func looksLikeAddress(text string) bool {
	if digitPattern.MatchString(text) {
		return true
	}
	return addressIndicatorPattern.MatchString(strings.ToLower(text))
}

func looksLikeDate(text string) bool {
	if digitPattern.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	return monthPattern.MatchString(lower) || dateWordPattern.MatchString(lower)
}

func hasProblematicPattern(text string) bool {
	lower := strings.ToLower(text)
	if _, ok := genericWords[lower]; ok {
		return true
	}
	if strings.Contains(text, "  ") || text != strings.TrimSpace(text) {
		return true
	}
	runes := []rune(text)
	if len(runes) > 0 {
		if strings.ContainsRune("'-.", runes[0]) || strings.ContainsRune("'-.", runes[len(runes)-1]) {
			return true
		}
	}
	if len(runes) > 2 && (isAllUpper(text) || isAllLower(text)) {
		return true
	}
	return strings.ContainsAny(text, forbiddenChars)
}

func tooSimilarToAccepted(cand string, seen *Seen) bool {
	candLower := strings.ToLower(cand)
	for _, existing := range seen.lower {
		if existing == candLower {
			continue
		}
		if charOverlap(candLower, existing) > 0.9 {
			return true
		}
		if nearDuplicates(candLower, existing) {
			return true
		}
	}
	return false
}

func nearDuplicates(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	if abs(len(ar)-len(br)) == 1 {
		longer, shorter := a, b
		if len(br) > len(ar) {
			longer, shorter = b, a
		}
		if strings.Contains(longer, shorter) {
			return true
		}
	}
	for _, pair := range nicknamePairs {
		if strings.Contains(a, pair[0]) && strings.Contains(b, pair[1]) {
			return true
		}
		if strings.Contains(a, pair[1]) && strings.Contains(b, pair[0]) {
			return true
		}
	}
	return false
}

func isAllUpper(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

func isAllLower(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			hasCased = true
		}
	}
	return hasCased
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
