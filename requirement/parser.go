package requirement

import (
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/c360studio/doppel/rules"
)

// Pattern cascades are ordered most-specific first; the first match
// wins and the rest are never consulted.
var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)generate\s+exactly\s+(\d+)\s+(?:name\s+)?variations`),
	regexp.MustCompile(`(?i)generate\s+(\d+)\s+(?:name\s+)?variations`),
	regexp.MustCompile(`(?i)exactly\s+(\d+)\s+(?:name\s+)?variations`),
	regexp.MustCompile(`(?i)(\d+)\s+variations\s+of`),
}

var fractionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)approximately\s+(\d+)%\s+of`),
	regexp.MustCompile(`(?i)also\s+include\s+(\d+)%\s+of`),
	regexp.MustCompile(`(?i)(\d+)%\s+of\s+the\s+total`),
	regexp.MustCompile(`(?i)(\d+)%\s+of\s+variations`),
	regexp.MustCompile(`(?i)include\s+(\d+)%`),
	regexp.MustCompile(`(?i)(\d+)%\s+should\s+follow`),
}

// Similarity tiers appear in two phrasings: "Light: 30%" and
// "(30% Light, ...)". Each tier tries the labeled form first.
var phoneticPatterns = map[Level][]*regexp.Regexp{
	Light: {
		regexp.MustCompile(`(?i)phonetic.*?Light[:\s]+(\d+)%`),
		regexp.MustCompile(`(?i)phonetic.*?(\d+)%\s+Light`),
	},
	Medium: {
		regexp.MustCompile(`(?i)phonetic.*?Medium[:\s]+(\d+)%`),
		regexp.MustCompile(`(?i)phonetic.*?(\d+)%\s+Medium`),
	},
	Far: {
		regexp.MustCompile(`(?i)phonetic.*?Far[:\s]+(\d+)%`),
		regexp.MustCompile(`(?i)phonetic.*?(\d+)%\s+Far`),
	},
}

var orthographicPatterns = map[Level][]*regexp.Regexp{
	Light: {
		regexp.MustCompile(`(?i)orthographic.*?Light[:\s]+(\d+)%`),
		regexp.MustCompile(`(?i)orthographic.*?(\d+)%\s+Light`),
	},
	Medium: {
		regexp.MustCompile(`(?i)orthographic.*?Medium[:\s]+(\d+)%`),
		regexp.MustCompile(`(?i)orthographic.*?(\d+)%\s+Medium`),
	},
	Far: {
		regexp.MustCompile(`(?i)orthographic.*?Far[:\s]+(\d+)%`),
		regexp.MustCompile(`(?i)orthographic.*?(\d+)%\s+Far`),
	},
}

var seedMarkerPattern = regexp.MustCompile(`(?i)For the seed "([^"]+)" ONLY`)

// Parse extracts a Requirement from instruction text. Unreadable
// fields keep their defaults; the decision is logged, not returned.
func Parse(text string) Requirement {
	req := Requirement{
		TargetCount: DefaultTargetCount,
		Raw:         text,
	}

	if n, ok := firstInt(countPatterns, text); ok && n > 0 {
		req.TargetCount = n
	} else {
		slog.Debug("No usable variation count in instruction, using default",
			"default", DefaultTargetCount)
	}

	if n, ok := firstInt(fractionPatterns, text); ok {
		req.RuleFraction = float64(n) / 100
	}

	req.Rules = matchRules(text)
	req.Phonetic = matchSimilarity(text, phoneticPatterns)
	req.Orthographic = matchSimilarity(text, orthographicPatterns)

	if m := seedMarkerPattern.FindStringSubmatch(text); m != nil {
		req.SeedMarker = m[1]
	}

	return req
}

func firstInt(patterns []*regexp.Regexp, text string) (int, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			slog.Warn("Unusable number in instruction", "match", m[1], "error", err)
			continue
		}
		return n, true
	}
	return 0, false
}

func matchRules(text string) []rules.Rule {
	lower := strings.ToLower(text)
	var out []rules.Rule
	for _, p := range rules.Phrases() {
		if !strings.Contains(lower, p.Text) {
			continue
		}
		if !slices.Contains(out, p.Rule) {
			out = append(out, p.Rule)
		}
	}
	return out
}

func matchSimilarity(text string, patterns map[Level][]*regexp.Regexp) map[Level]float64 {
	out := map[Level]float64{}
	for lvl, cascade := range patterns {
		if n, ok := firstInt(cascade, text); ok {
			out[lvl] = float64(n) / 100
		}
	}
	return out
}
