// Package dobgen derives date-of-birth variations from a seed date.
package dobgen

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// layouts are the accepted seed formats, tried in order. Day-first
// interpretations win over month-first for ambiguous dates.
var layouts = []string{
	"2006-01-02", "2006/01/02",
	"02-01-2006", "02/01/2006",
	"01-02-2006", "01/02/2006",
}

var (
	nearOffsets  = []int{-2, -1, 1, 2}
	monthOffsets = []int{-30, -28, 28, 30}
	yearOffsets  = []int{-365, 365}
)

// Generator produces date variations over an injected RNG. Not safe
// for concurrent use.
type Generator struct {
	rng    *rand.Rand
	logger *slog.Logger
}

func NewGenerator(rng *rand.Rand, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{rng: rng, logger: logger}
}

// Variations returns exactly n renderings of the seed date. Offsets
// are banded by output position: the first ten stay within two days,
// the next ten shift by roughly a month, the next five by a year, and
// the rest degrade to partial dates. An unparseable seed is echoed n
// times rather than failing.
func (g *Generator) Variations(seed string, n int) []string {
	if n <= 0 {
		return nil
	}
	base, ok := parse(strings.TrimSpace(seed))
	if !ok {
		g.logger.Warn("unparseable date of birth, echoing seed", "seed", seed)
		out := make([]string, n)
		for i := range out {
			out[i] = seed
		}
		return out
	}
	out := make([]string, n)
	for i := range out {
		out[i] = g.variant(base, i)
	}
	return out
}

func (g *Generator) variant(base time.Time, index int) string {
	switch {
	case index < 10:
		off := nearOffsets[g.rng.IntN(len(nearOffsets))]
		return base.AddDate(0, 0, off).Format(dateLayout)
	case index < 20:
		off := monthOffsets[g.rng.IntN(len(monthOffsets))]
		return base.AddDate(0, 0, off).Format(dateLayout)
	case index < 25:
		off := yearOffsets[g.rng.IntN(len(yearOffsets))]
		return base.AddDate(0, 0, off).Format(dateLayout)
	default:
		if g.rng.IntN(2) == 0 {
			return base.Format("2006-01")
		}
		return base.Format("2006")
	}
}

func parse(seed string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, seed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
