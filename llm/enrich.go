package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360studio/doppel/model"
	"github.com/c360studio/doppel/script"
)

var (
	// numberingPrefix strips list numbering like "1." or "3)" from model output.
	numberingPrefix = regexp.MustCompile(`^\d+[\.\)]\s*`)

	// namePattern accepts Latin letters (plain or accented) separated by
	// single spaces, hyphens, or apostrophes. Anything else is model chatter.
	namePattern = regexp.MustCompile(`^[A-Za-zÀ-ÿ]+([ '\-][A-Za-zÀ-ÿ]+)*$`)
)

// linePrefixes are decorations models add despite being told not to.
var linePrefixes = []string{"Variation:", "Alt:", "Alternative:", "-", "*", "•"}

// EnricherConfig holds tuning knobs for LLM name enrichment.
type EnricherConfig struct {
	// Capability forces a specific capability for every call.
	// Empty selects by the seed's script.
	Capability string

	// Temperature for the completion request. 0 uses the default of 0.4.
	Temperature float64

	// MaxTokens caps the response length. 0 uses the default of 300.
	MaxTokens int
}

// Enricher generates free-form name variations through the LLM client.
// Output is candidate-only; callers revalidate every name before use.
type Enricher struct {
	client      *Client
	capability  string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewEnricher creates an enricher backed by the given client.
func NewEnricher(client *Client, cfg EnricherConfig, logger *slog.Logger) *Enricher {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Enricher{
		client:      client,
		capability:  cfg.Capability,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Names asks the LLM for up to n variations of seed. The capability is
// chosen from the seed's script: Latin seeds get spelling variants, other
// scripts get Latin transliterations. Results are cleaned and deduplicated
// but otherwise unvalidated.
func (e *Enricher) Names(ctx context.Context, seed string, n int, sc script.Script) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, nil
	}

	// Ask for more than needed; cleaning and dedup eat a lot of the output.
	ask := n * 3

	capability := e.capability
	if capability == "" {
		capability = string(model.CapabilityForScript(sc))
	}

	resp, err := e.client.Complete(ctx, Request{
		Capability:  capability,
		Messages:    []Message{{Role: "user", Content: namesPrompt(seed, ask, sc)}},
		Temperature: &e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("name enrichment: %w", err)
	}

	names := parseNameLines(resp.Content, seed, n)

	e.logger.Debug("LLM name enrichment complete",
		"seed", seed,
		"model", resp.Model,
		"requested", n,
		"kept", len(names))

	return names, nil
}

// namesPrompt builds the completion prompt for a seed name.
func namesPrompt(seed string, count int, sc script.Script) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d realistic variations of the name %q.\n\n", count, seed)

	b.WriteString("Requirements:\n")
	b.WriteString("- Output only names, one per line, no explanations or numbering\n")
	b.WriteString("- Use only letters, spaces, hyphens, and apostrophes\n")
	b.WriteString("- No digits, addresses, dates, or special characters\n")
	b.WriteString("- Keep the length within 3 characters of the original\n")
	b.WriteString("- Keep the same structure as the original name\n")
	b.WriteString("- Prefer common spelling variations and phonetic alternatives\n")
	if sc != script.Latin {
		b.WriteString("- Render every variation in Latin letters (transliterate the original)\n")
	}

	b.WriteString("\nGood examples for \"John Smith\": Jon Smith, John Smyth, Jhon Smith, Johan Smith, John Smythe\n")
	b.WriteString("Bad examples: John123, John Street, John 1990, J@hn Smith\n")

	fmt.Fprintf(&b, "\nGenerate %d variations of %q:\n", count, seed)

	return b.String()
}

// parseNameLines extracts cleaned, deduplicated names from model output,
// returning at most limit entries. The seed itself is never returned.
func parseNameLines(content, seed string, limit int) []string {
	seen := map[string]bool{strings.ToLower(seed): true}
	var names []string

	take := func(raw string) {
		if len(names) >= limit {
			return
		}
		name := cleanNameLine(raw)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}

	// Some models answer with a JSON array despite the line-based prompt.
	if arr := ExtractJSONArray(content); arr != "" {
		var fromJSON []string
		if json.Unmarshal([]byte(arr), &fromJSON) == nil {
			for _, name := range fromJSON {
				take(name)
			}
			if len(names) > 0 {
				return names
			}
		}
	}

	for _, line := range strings.Split(content, "\n") {
		take(line)
	}

	// Others put everything on one line separated by commas.
	if len(names) < limit {
		for _, part := range strings.Split(strings.ReplaceAll(content, "\n", ","), ",") {
			take(part)
		}
	}

	return names
}

// cleanNameLine strips decoration from a single output line and returns the
// bare name, or "" when the line is not a usable name.
func cleanNameLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	for _, prefix := range linePrefixes {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	s = numberingPrefix.ReplaceAllString(s, "")

	// "Here is a variation: Jon Smith" keeps only the part after the colon.
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		s = strings.TrimSpace(s[idx+1:])
	}

	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.TrimPrefix(s, "and ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	if !namePattern.MatchString(s) {
		return ""
	}
	return s
}
