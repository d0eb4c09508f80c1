package rules

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrUnknownRule marks an identifier outside the catalog. Callers are
// expected to log and move on rather than abort a request.
var ErrUnknownRule = errors.New("unknown rule")

type transform func(rng *rand.Rand, name string) string

// Registry applies catalog rules to names. A registry is cheap and
// safe to construct per request; it is not safe for concurrent use
// because the random source is not.
type Registry struct {
	rng      *rand.Rand
	dispatch map[Rule]transform
}

// NewRegistry returns a registry drawing randomness from rng.
func NewRegistry(rng *rand.Rand) *Registry {
	return &Registry{
		rng: rng,
		dispatch: map[Rule]transform{
			ReplaceSpacesWithSpecialCharacters: replaceSpacesWithSpecialCharacters,
			ReplaceVowels:                      replaceVowels,
			DeleteLetter:                       deleteLetter,
			InsertLetter:                       insertLetter,
			DuplicateLetters:                   duplicateLetters,
			SwapRandomLetter:                   swapRandomLetter,
			ShortenNameToInitials:              shortenNameToInitials,
			ReorderNameParts:                   reorderNameParts,
			AddSpecialCharacters:               addSpecialCharacters,
			CapitalizeRandomLetters:            capitalizeRandomLetters,
			ReverseName:                        reverseName,
			AddAccents:                         addAccents,
			RemoveAccents:                      removeAccents,
			ChangeCasePattern:                  changeCasePattern,
			AddHyphens:                         addHyphens,
			RemoveHyphens:                      removeHyphens,
			PhoneticSubstitution:               phoneticSubstitution,
			DoubleConsonants:                   doubleConsonants,
			SimplifyConsonants:                 simplifyConsonants,
			RemoveRandomConsonant:              removeRandomConsonant,
			SwapAdjacentConsonants:             swapAdjacentConsonants,
			SwapAdjacentSyllables:              swapAdjacentSyllables,
			Transliterate:                      transliterate,
			AddTitle:                           addTitle,
		},
	}
}

// Apply runs one random application of rule against name. Unknown
// rules return the input unchanged wrapped with ErrUnknownRule. A
// known rule that cannot act on this particular name (no spaces to
// replace, too short to delete) returns the input unchanged with a
// nil error; callers detect the lack of progress by comparison.
func (r *Registry) Apply(rule Rule, name string) (string, error) {
	fn, ok := r.dispatch[rule]
	if !ok {
		return name, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
	}
	return fn(r.rng, name), nil
}
