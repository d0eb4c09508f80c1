// Package requirement turns free-form generation instructions into
// structured requirements. Parsing is best-effort and never fails:
// anything the cascade cannot read falls back to a usable default, so
// a malformed instruction degrades to a plain 15-variation request
// instead of aborting.
package requirement

import (
	"math"

	"github.com/c360studio/doppel/rules"
)

// DefaultTargetCount applies when an instruction names no count.
const DefaultTargetCount = 15

// Level grades how close a variation stays to its seed.
type Level string

const (
	Light  Level = "Light"
	Medium Level = "Medium"
	Far    Level = "Far"
)

// Levels returns the similarity tiers in canonical order.
func Levels() []Level {
	return []Level{Light, Medium, Far}
}

// Requirement is the structured form of a generation instruction.
type Requirement struct {
	// TargetCount is the exact number of variations owed per seed.
	TargetCount int
	// RuleFraction is the share of variations that should come from
	// rule transformations, in [0,1] for well-formed instructions.
	RuleFraction float64
	// Rules lists the requested transformations in trigger-table
	// order, deduplicated.
	Rules []rules.Rule
	// Phonetic and Orthographic hold similarity tier weights. Empty
	// maps mean the instruction expressed no preference.
	Phonetic     map[Level]float64
	Orthographic map[Level]float64
	// SeedMarker carries the quoted seed from a "For the seed \"X\"
	// ONLY" clause, when present.
	SeedMarker string
	// Raw preserves the original instruction text.
	Raw string
}

// RuleQuota is ceil(target × fraction), the canonical rounding for
// rule-phase allocation.
func RuleQuota(target int, fraction float64) int {
	if target <= 0 || fraction <= 0 {
		return 0
	}
	return int(math.Ceil(float64(target) * fraction))
}

// RuleQuota returns the number of variations owed to the rule phase.
// A fraction alone never triggers rule generation: with no selected
// rules the quota is zero. The quota is capped at the target count.
func (r Requirement) RuleQuota() int {
	if len(r.Rules) == 0 {
		return 0
	}
	q := RuleQuota(r.TargetCount, r.RuleFraction)
	if q > r.TargetCount {
		q = r.TargetCount
	}
	return q
}

// SimilarityCounts splits total across tiers by integer truncation,
// handing any remainder to the largest tier. Medium wins ties against
// both neighbors and Light wins ties against Far, so a uniform
// distribution piles the remainder on Medium.
func SimilarityCounts(total int, dist map[Level]float64) map[Level]int {
	light := int(float64(total) * dist[Light])
	medium := int(float64(total) * dist[Medium])
	far := int(float64(total) * dist[Far])

	if rem := total - (light + medium + far); rem > 0 {
		switch {
		case medium >= light && medium >= far:
			medium += rem
		case light >= far:
			light += rem
		default:
			far += rem
		}
	}

	return map[Level]int{Light: light, Medium: medium, Far: far}
}
