// Package rules implements the closed catalog of name transformation
// rules. Each rule is a bounded, single-application edit: one call
// produces one transformed string, and callers loop when they need
// more. All randomness flows through an injected source so a fixed
// seed reproduces the same output.
package rules

import "strings"

// Rule is the canonical identifier of a transformation rule.
type Rule string

const (
	ReplaceSpacesWithSpecialCharacters Rule = "replace_spaces_with_special_characters"
	ReplaceVowels                      Rule = "replace_vowels"
	DeleteLetter                       Rule = "delete_letter"
	InsertLetter                       Rule = "insert_letter"
	DuplicateLetters                   Rule = "duplicate_letters"
	SwapRandomLetter                   Rule = "swap_random_letter"
	ShortenNameToInitials              Rule = "shorten_name_to_initials"
	ReorderNameParts                   Rule = "reorder_name_parts"
	AddSpecialCharacters               Rule = "add_special_characters"
	CapitalizeRandomLetters            Rule = "capitalize_random_letters"
	ReverseName                        Rule = "reverse_name"
	AddAccents                         Rule = "add_accents"
	RemoveAccents                      Rule = "remove_accents"
	ChangeCasePattern                  Rule = "change_case_pattern"
	AddHyphens                         Rule = "add_hyphens"
	RemoveHyphens                      Rule = "remove_hyphens"
	PhoneticSubstitution               Rule = "phonetic_substitution"
	DoubleConsonants                   Rule = "double_consonants"
	SimplifyConsonants                 Rule = "simplify_consonants"
	RemoveRandomConsonant              Rule = "remove_random_consonant"
	SwapAdjacentConsonants             Rule = "swap_adjacent_consonants"
	SwapAdjacentSyllables              Rule = "swap_adjacent_syllables"
	Transliterate                      Rule = "transliterate"
	AddTitle                           Rule = "add_title"
)

// Info describes one catalog entry for discovery surfaces (the rules
// CLI command and the HTTP catalog endpoint).
type Info struct {
	Rule        Rule     `json:"rule"`
	Description string   `json:"description"`
	Synonyms    []string `json:"synonyms,omitempty"`
}

// Phrase associates a natural-language trigger with its canonical
// rule. Instruction text is scanned for these substrings.
type Phrase struct {
	Text string
	Rule Rule
}

// phrases lists trigger phrases in match order. Order matters twice:
// scanning is first-come, and the rule list a parse produces keeps
// this order, not the order of appearance in the instruction text.
var phrases = []Phrase{
	{"replace spaces with special characters", ReplaceSpacesWithSpecialCharacters},
	{"replace spaces", ReplaceSpacesWithSpecialCharacters},
	{"replace vowels", ReplaceVowels},
	{"add special characters", AddSpecialCharacters},
	{"transliterate", Transliterate},
	{"remove a random consonant", RemoveRandomConsonant},
	{"remove random consonant", RemoveRandomConsonant},
	{"swap adjacent syllables", SwapAdjacentSyllables},
	{"swap adjacent consonants", SwapAdjacentConsonants},
	{"delete a random letter", DeleteLetter},
	{"delete random letter", DeleteLetter},
	{"delete a letter", DeleteLetter},
	{"insert a letter", InsertLetter},
	{"insert a random letter", InsertLetter},
	{"convert", ShortenNameToInitials},
	{"shorten name to initials", ShortenNameToInitials},
	{"initials", ShortenNameToInitials},
	{"swap random adjacent letters", SwapRandomLetter},
	{"swap adjacent letters", SwapRandomLetter},
	{"reorder name parts", ReorderNameParts},
	{"reorder the name parts", ReorderNameParts},
	{"duplicate letters", DuplicateLetters},
	{"duplicate a letter", DuplicateLetters},
	{"capitalize random letters", CapitalizeRandomLetters},
	{"random capitalization", CapitalizeRandomLetters},
	{"reverse name", ReverseName},
	{"reverse the name", ReverseName},
	{"add accents", AddAccents},
	{"remove accents", RemoveAccents},
	{"change case pattern", ChangeCasePattern},
	{"change the case", ChangeCasePattern},
	{"add hyphens", AddHyphens},
	{"remove hyphens", RemoveHyphens},
	{"phonetic substitution", PhoneticSubstitution},
	{"phonetic substitutions", PhoneticSubstitution},
	{"double consonants", DoubleConsonants},
	{"simplify consonants", SimplifyConsonants},
	{"add a title", AddTitle},
	{"add title", AddTitle},
}

var descriptions = map[Rule]string{
	ReplaceSpacesWithSpecialCharacters: "replace spaces with a separator character (_ - . + = ~)",
	ReplaceVowels:                      "substitute one vowel with a visually similar character",
	DeleteLetter:                       "remove one random character (names longer than 2)",
	InsertLetter:                       "insert one common letter at a random position",
	DuplicateLetters:                   "double one random character",
	SwapRandomLetter:                   "transpose two adjacent characters",
	ShortenNameToInitials:              "reduce multi-part names to initials (J.S., JS, J S, J-S)",
	ReorderNameParts:                   "rearrange the parts of a multi-part name",
	AddSpecialCharacters:               "insert one special character at the start, middle, or end",
	CapitalizeRandomLetters:            "re-roll the case of every letter",
	ReverseName:                        "reverse the whole name, each word, or character pairs",
	AddAccents:                         "accent one unaccented vowel",
	RemoveAccents:                      "strip diacritics",
	ChangeCasePattern:                  "apply a different capitalization pattern",
	AddHyphens:                         "join name parts with hyphens",
	RemoveHyphens:                      "drop hyphens or turn them into spaces",
	PhoneticSubstitution:               "swap a sound-alike letter group (ph/f, c/k, s/z, ...)",
	DoubleConsonants:                   "double one consonant",
	SimplifyConsonants:                 "collapse one doubled letter",
	RemoveRandomConsonant:              "remove one random consonant",
	SwapAdjacentConsonants:             "transpose two adjacent consonants",
	SwapAdjacentSyllables:              "transpose two adjacent syllables within a word",
	Transliterate:                      "render the name in plain Latin characters",
	AddTitle:                           "prepend a title or append a generational suffix",
}

// All returns every canonical rule in catalog order.
func All() []Rule {
	return []Rule{
		ReplaceSpacesWithSpecialCharacters,
		ReplaceVowels,
		DeleteLetter,
		InsertLetter,
		DuplicateLetters,
		SwapRandomLetter,
		ShortenNameToInitials,
		ReorderNameParts,
		AddSpecialCharacters,
		CapitalizeRandomLetters,
		ReverseName,
		AddAccents,
		RemoveAccents,
		ChangeCasePattern,
		AddHyphens,
		RemoveHyphens,
		PhoneticSubstitution,
		DoubleConsonants,
		SimplifyConsonants,
		RemoveRandomConsonant,
		SwapAdjacentConsonants,
		SwapAdjacentSyllables,
		Transliterate,
		AddTitle,
	}
}

// Known reports whether r is a catalog rule.
func Known(r Rule) bool {
	_, ok := descriptions[r]
	return ok
}

// Phrases returns the trigger phrase table in match order.
func Phrases() []Phrase {
	out := make([]Phrase, len(phrases))
	copy(out, phrases)
	return out
}

// Canonical resolves free-form text to a catalog rule. Exact canonical
// identifiers win; otherwise the first trigger phrase contained in the
// text decides. The second return is false when nothing matches.
func Canonical(s string) (Rule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if Known(Rule(normalized)) {
		return Rule(normalized), true
	}
	for _, p := range phrases {
		if strings.Contains(normalized, p.Text) {
			return p.Rule, true
		}
	}
	return "", false
}

// Catalog returns discovery metadata for every rule.
func Catalog() []Info {
	synonyms := make(map[Rule][]string)
	for _, p := range phrases {
		synonyms[p.Rule] = append(synonyms[p.Rule], p.Text)
	}
	all := All()
	out := make([]Info, 0, len(all))
	for _, r := range all {
		out = append(out, Info{
			Rule:        r,
			Description: descriptions[r],
			Synonyms:    synonyms[r],
		})
	}
	return out
}
