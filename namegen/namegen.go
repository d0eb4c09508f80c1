// Package namegen orchestrates name variation generation: a
// rule-driven block, a free block drawn from the strategy generators,
// and a reconciliation pass that tops the result up to the exact
// requested count. The count contract is absolute; a hostile seed
// degrades output quality, never output size.
package namegen

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/c360studio/doppel/candidate"
	"github.com/c360studio/doppel/quality"
	"github.com/c360studio/doppel/requirement"
	"github.com/c360studio/doppel/rules"
	"github.com/c360studio/doppel/script"
)

// ErrEmptySeed rejects generation requests without a usable seed name.
var ErrEmptySeed = errors.New("empty seed name")

// Source records which phase produced a variation.
type Source string

const (
	SourceRule     Source = "rule"
	SourceFree     Source = "free"
	SourceFallback Source = "fallback"
)

// Variation is one generated name with its provenance.
type Variation struct {
	Text     string             `json:"text"`
	Source   Source             `json:"source"`
	Rule     rules.Rule         `json:"rule,omitempty"`
	Strategy candidate.Strategy `json:"strategy,omitempty"`
	Score    float64            `json:"score,omitempty"`
}

// Result is a complete generation outcome. The variation slice always
// holds exactly the requested count, ordered rule block first, then
// free block, then fallback pads.
type Result struct {
	Seed          string        `json:"seed"`
	Script        script.Script `json:"script"`
	Variations    []Variation   `json:"variations"`
	RuleCount     int           `json:"rule_count"`
	FreeCount     int           `json:"free_count"`
	FallbackCount int           `json:"fallback_count"`
}

// CandidateSource supplies extra free-phase candidates, typically an
// LLM. Returned names are revalidated like any other candidate.
type CandidateSource interface {
	Names(ctx context.Context, seed string, count int) ([]string, error)
}

// Config tunes generation. The zero value selects the defaults.
type Config struct {
	// Overgeneration multiplies the free-phase pool before filtering.
	// Clamped to 2..3, default 3.
	Overgeneration int `json:"overgeneration"`
	// RuleAttempts multiplies the per-rule retry budget, default 5.
	RuleAttempts int `json:"rule_attempts"`
	// ReconcileAttempts multiplies the top-up retry budget when the
	// ranked pool falls short of the target, default 10.
	ReconcileAttempts int `json:"reconcile_attempts"`
}

// Engine drives the generation phases. Not safe for concurrent use;
// construct one per request with its own RNG.
type Engine struct {
	rng      *rand.Rand
	registry *rules.Registry
	gen      *candidate.Generator
	filter   *quality.Filter
	logger   *slog.Logger
	source   CandidateSource
	overgen  int
	attempts int
	topup    int
}

func NewEngine(rng *rand.Rand, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	overgen := cfg.Overgeneration
	if overgen == 0 {
		overgen = 3
	} else if overgen < 2 {
		overgen = 2
	} else if overgen > 3 {
		overgen = 3
	}
	attempts := cfg.RuleAttempts
	if attempts <= 0 {
		attempts = 5
	}
	topup := cfg.ReconcileAttempts
	if topup <= 0 {
		topup = 10
	}
	return &Engine{
		rng:      rng,
		registry: rules.NewRegistry(rng),
		gen:      candidate.NewGenerator(rng),
		filter:   quality.NewFilter(),
		logger:   logger,
		overgen:  overgen,
		attempts: attempts,
		topup:    topup,
	}
}

// AttachSource adds an external candidate source to the free phase.
func (e *Engine) AttachSource(src CandidateSource) {
	e.source = src
}

// Generate produces exactly req.TargetCount variations of seed. It
// returns an error only for an empty seed; shortfall, inapplicable
// rules, and collaborator failures degrade the output instead. A
// cancelled context skips the remaining phases and pads the result to
// the exact count with the seed text, the one sanctioned duplicate.
func (e *Engine) Generate(ctx context.Context, seed string, req requirement.Requirement) (Result, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return Result{}, ErrEmptySeed
	}
	target := req.TargetCount
	if target <= 0 {
		target = requirement.DefaultTargetCount
	}
	quota := 0
	if len(req.Rules) > 0 {
		quota = requirement.RuleQuota(target, req.RuleFraction)
		if quota > target {
			quota = target
		}
	}
	res := Result{Seed: seed, Script: script.Detect(seed)}
	seen := quality.NewSeen()
	e.logger.Debug("generation started",
		"seed", seed, "target", target, "rule_quota", quota, "script", string(res.Script))

	var vars []Variation
	if ctx.Err() == nil {
		vars = e.rulePhase(ctx, seed, req.Rules, quota, seen)
		res.RuleCount = len(vars)
		e.logger.Debug("phase complete", "phase", "rule_allocated", "count", res.RuleCount)
	}
	if ctx.Err() == nil {
		free := e.freePhase(ctx, seed, target-quota, req, seen)
		res.FreeCount = len(free)
		vars = append(vars, free...)
		e.logger.Debug("phase complete", "phase", "free_generated", "count", res.FreeCount)
	}
	if ctx.Err() == nil && len(vars) < target {
		vars = append(vars, e.reconcile(ctx, seed, target-len(vars), vars, seen)...)
		e.logger.Debug("phase complete", "phase", "reconciled", "count", len(vars))
	}

	if len(vars) > target {
		e.logger.Error("variation overrun repaired", "got", len(vars), "want", target)
		vars = vars[:target]
	}
	if pad := target - len(vars); pad > 0 {
		e.logger.Debug("padding with seed text", "count", pad)
		for i := 0; i < pad; i++ {
			vars = append(vars, Variation{Text: seed, Source: SourceFallback})
		}
	}
	res.Variations = vars
	res.FallbackCount = target - res.RuleCount - res.FreeCount
	return res, nil
}

// rulePhase fills the rule quota, splitting it evenly across the
// requested rules with the remainder going to the earliest-listed.
// Every output must clear the acceptance predicate, so a rule whose
// products never pass legitimately yields nothing.
func (e *Engine) rulePhase(ctx context.Context, seed string, ruleList []rules.Rule, quota int, seen *quality.Seen) []Variation {
	if quota <= 0 || len(ruleList) == 0 {
		return nil
	}
	out := make([]Variation, 0, quota)
	share := quota / len(ruleList)
	extra := quota % len(ruleList)
	for i, r := range ruleList {
		if ctx.Err() != nil {
			return out
		}
		want := share
		if i < extra {
			want++
		}
		if want == 0 {
			continue
		}
		got := 0
		for attempts := 0; got < want && attempts < e.attempts*want; attempts++ {
			text, err := e.registry.Apply(r, seed)
			if err != nil {
				e.logger.Warn("rule application failed", "rule", string(r), "error", err)
				break
			}
			if text == seed || !e.filter.Accept(text, seed, seen) {
				continue
			}
			seen.Add(text)
			out = append(out, Variation{Text: text, Source: SourceRule, Rule: r})
			got++
		}
		if got < want {
			e.logger.Debug("rule under-delivered", "rule", string(r), "want", want, "got", got)
		}
	}
	return out
}

// freePhase overgenerates strategy candidates, merges in the external
// source when one is attached, and accepts survivors in score order
// until need is met.
func (e *Engine) freePhase(ctx context.Context, seed string, need int, req requirement.Requirement, seen *quality.Seen) []Variation {
	if need <= 0 {
		return nil
	}
	pool := e.gen.Batch(seed, e.overgen*need, req)
	if e.source != nil && ctx.Err() == nil {
		names, err := e.source.Names(ctx, seed, need)
		if err != nil {
			e.logger.Warn("candidate source failed, continuing without", "error", err)
		}
		for _, n := range names {
			pool = append(pool, candidate.Candidate{Text: n, Strategy: candidate.StrategyLLM})
		}
	}

	texts := make([]string, len(pool))
	strategyOf := make(map[string]candidate.Strategy, len(pool))
	for i, c := range pool {
		texts[i] = c.Text
		key := strings.ToLower(c.Text)
		if _, ok := strategyOf[key]; !ok {
			strategyOf[key] = c.Strategy
		}
	}

	out := make([]Variation, 0, need)
	for _, s := range quality.Rank(texts, seed) {
		if len(out) >= need {
			break
		}
		if !e.filter.Accept(s.Text, seed, seen) {
			continue
		}
		seen.Add(s.Text)
		out = append(out, Variation{
			Text:     s.Text,
			Source:   SourceFree,
			Strategy: strategyOf[strings.ToLower(s.Text)],
			Score:    s.Score,
		})
	}
	return out
}

var nudgeVowels = []rune("aeiou")

// reconcile tops up a shortfall with single edits of the seed and the
// first accepted variations, spending a bounded number of attempts per
// missing entry.
func (e *Engine) reconcile(ctx context.Context, seed string, shortfall int, accepted []Variation, seen *quality.Seen) []Variation {
	bases := []string{seed}
	for i := 0; i < len(accepted) && i < 3; i++ {
		bases = append(bases, accepted[i].Text)
	}
	out := make([]Variation, 0, shortfall)
	for attempts := 0; len(out) < shortfall && attempts < e.topup*shortfall; attempts++ {
		if ctx.Err() != nil {
			break
		}
		text := e.nudge(bases[e.rng.IntN(len(bases))])
		if text == "" || !e.filter.Accept(text, seed, seen) {
			continue
		}
		seen.Add(text)
		out = append(out, Variation{Text: text, Source: SourceFallback})
	}
	return out
}

// nudge applies one small random edit to base.
func (e *Engine) nudge(base string) string {
	rs := []rune(base)
	if len(rs) == 0 {
		return ""
	}
	switch e.rng.IntN(4) {
	case 0: // insert a vowel
		i := e.rng.IntN(len(rs) + 1)
		v := nudgeVowels[e.rng.IntN(len(nudgeVowels))]
		out := make([]rune, 0, len(rs)+1)
		out = append(out, rs[:i]...)
		out = append(out, v)
		return string(append(out, rs[i:]...))
	case 1: // delete a letter
		if len(rs) <= 2 {
			return ""
		}
		i := e.rng.IntN(len(rs))
		return string(rs[:i]) + string(rs[i+1:])
	case 2: // duplicate a letter
		i := e.rng.IntN(len(rs))
		return string(rs[:i+1]) + string(rs[i:])
	default: // reroll letter case
		out := make([]rune, len(rs))
		for i, r := range rs {
			if e.rng.IntN(2) == 0 {
				out[i] = unicode.ToUpper(r)
			} else {
				out[i] = unicode.ToLower(r)
			}
		}
		return string(out)
	}
}
