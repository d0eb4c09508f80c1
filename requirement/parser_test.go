package requirement_test

import (
	"testing"

	"github.com/c360studio/doppel/requirement"
	"github.com/c360studio/doppel/rules"
	"github.com/stretchr/testify/assert"
)

func TestParseFullInstruction(t *testing.T) {
	text := `Generate exactly 11 variations of {name}. Ensure the generated ` +
		`variations reflect phonetic similarity (30% Light, 40% Medium, 30% Far) ` +
		`and orthographic similarity (50% Light, 50% Medium). Approximately 51% ` +
		`of all generated variations should follow these rule-based ` +
		`transformations: Reorder name parts.`

	req := requirement.Parse(text)

	assert.Equal(t, 11, req.TargetCount)
	assert.InDelta(t, 0.51, req.RuleFraction, 1e-9)
	assert.Equal(t, []rules.Rule{rules.ReorderNameParts}, req.Rules)
	assert.Equal(t, map[requirement.Level]float64{
		requirement.Light:  0.3,
		requirement.Medium: 0.4,
		requirement.Far:    0.3,
	}, req.Phonetic)
	assert.Equal(t, map[requirement.Level]float64{
		requirement.Light:  0.5,
		requirement.Medium: 0.5,
	}, req.Orthographic)
	assert.Empty(t, req.SeedMarker)
	assert.Equal(t, text, req.Raw)
}

func TestParseDefaults(t *testing.T) {
	req := requirement.Parse("do something nice with this name")

	assert.Equal(t, requirement.DefaultTargetCount, req.TargetCount)
	assert.Zero(t, req.RuleFraction)
	assert.Empty(t, req.Rules)
	assert.Empty(t, req.Phonetic)
	assert.Empty(t, req.Orthographic)
}

func TestParseCountCascade(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"generate exactly", "Generate exactly 7 variations of the name", 7},
		{"generate", "Generate 9 name variations please", 9},
		{"bare exactly", "We need exactly 12 variations here", 12},
		{"trailing of", "Deliver 21 variations of each seed", 21},
		{"zero falls back", "Generate exactly 0 variations of the name", 15},
		{"case insensitive", "GENERATE EXACTLY 5 VARIATIONS of it", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requirement.Parse(tt.text).TargetCount)
		})
	}
}

func TestParseRuleFractionCascade(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"approximately", "Approximately 30% of variations should use rules", 0.3},
		{"also include", "Also include 25% of rule-driven output", 0.25},
		{"of the total", "Make 40% of the total rule-based", 0.4},
		{"should follow", "60% should follow the transformations", 0.6},
		{"absent", "No percentages here", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, requirement.Parse(tt.text).RuleFraction, 1e-9)
		})
	}
}

func TestParseMultipleRulesKeepTriggerOrder(t *testing.T) {
	text := "Reorder name parts, replace vowels, and swap adjacent consonants"
	req := requirement.Parse(text)

	// Order follows the trigger table, not appearance in the text.
	assert.Equal(t, []rules.Rule{
		rules.ReplaceVowels,
		rules.SwapAdjacentConsonants,
		rules.ReorderNameParts,
	}, req.Rules)
}

func TestParseSimilarityLabeledForm(t *testing.T) {
	text := "Reflect phonetic similarity Light: 20% Medium: 50% Far: 30% in the output"
	req := requirement.Parse(text)

	assert.Equal(t, map[requirement.Level]float64{
		requirement.Light:  0.2,
		requirement.Medium: 0.5,
		requirement.Far:    0.3,
	}, req.Phonetic)
	assert.Empty(t, req.Orthographic)
}

func TestParseSeedMarker(t *testing.T) {
	req := requirement.Parse(`For the seed "Olga Danilova" ONLY, add extra noise`)
	assert.Equal(t, "Olga Danilova", req.SeedMarker)
}

func TestRuleQuota(t *testing.T) {
	assert.Equal(t, 6, requirement.RuleQuota(11, 0.51))
	assert.Equal(t, 3, requirement.RuleQuota(10, 0.3))
	assert.Equal(t, 10, requirement.RuleQuota(20, 0.5))
	assert.Equal(t, 1, requirement.RuleQuota(11, 0.01))
	assert.Equal(t, 0, requirement.RuleQuota(11, 0))
	assert.Equal(t, 0, requirement.RuleQuota(0, 0.5))
}

func TestRequirementRuleQuotaNeedsRules(t *testing.T) {
	req := requirement.Requirement{TargetCount: 11, RuleFraction: 0.51}
	assert.Zero(t, req.RuleQuota(), "fraction alone never triggers the rule phase")

	req.Rules = []rules.Rule{rules.ReorderNameParts}
	assert.Equal(t, 6, req.RuleQuota())

	req.RuleFraction = 2.0
	assert.Equal(t, 11, req.RuleQuota(), "quota caps at the target")
}

func TestSimilarityCounts(t *testing.T) {
	dist := map[requirement.Level]float64{
		requirement.Light:  0.3,
		requirement.Medium: 0.4,
		requirement.Far:    0.3,
	}
	counts := requirement.SimilarityCounts(11, dist)
	total := counts[requirement.Light] + counts[requirement.Medium] + counts[requirement.Far]
	assert.Equal(t, 11, total)
	// 3/4/3 truncated leaves one remainder for the largest tier.
	assert.Equal(t, 3, counts[requirement.Light])
	assert.Equal(t, 5, counts[requirement.Medium])
	assert.Equal(t, 3, counts[requirement.Far])
}

func TestSimilarityCountsTieGoesToMedium(t *testing.T) {
	dist := map[requirement.Level]float64{
		requirement.Light:  0.5,
		requirement.Medium: 0.5,
	}
	counts := requirement.SimilarityCounts(5, dist)
	assert.Equal(t, 2, counts[requirement.Light])
	assert.Equal(t, 3, counts[requirement.Medium])
	assert.Equal(t, 0, counts[requirement.Far])
}
