// Package addressgen synthesizes plausible street addresses for a
// city and country, preferring real road names from the geocoder and
// falling back to synthetic pools when it is unavailable.
package addressgen

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/c360studio/doppel/geocode"
	"github.com/c360studio/doppel/script"
)

// Geocoder resolves real road names for a city and country.
type Geocoder interface {
	Search(ctx context.Context, city, country string) ([]geocode.Place, error)
}

// defaultRoads serves Latin-script cities and anything unclassified.
var defaultRoads = []string{
	"Main Street", "Oak Avenue", "Park Road", "Church Street",
	"High Street", "Station Road", "Market Street", "Mill Lane",
	"School Road", "Broadway",
}

// arabicRoads serves cities written in Arabic script.
var arabicRoads = []string{
	"Al Quds Street", "King Faisal Road", "Al Nour Avenue",
	"Corniche Road", "Al Salam Street", "Al Madina Road",
	"Al Wahda Street", "Palm Grove Avenue",
}

// europeanRoads serves cities written in Cyrillic script.
var europeanRoads = []string{
	"Lenina Street", "Pushkina Street", "Sadovaya Street",
	"Mira Avenue", "Tverskaya Street", "Nevsky Avenue",
	"Gagarina Street", "Sovetskaya Street",
}

const forbiddenChars = "_#@$%^&*()[]{}|\\/<>?!~`+="

// Generator builds address variations over an injected RNG. Not safe
// for concurrent use.
type Generator struct {
	rng    *rand.Rand
	geo    Geocoder
	logger *slog.Logger
}

// NewGenerator wires a generator; geo may be nil to always use the
// synthetic pools.
func NewGenerator(rng *rand.Rand, geo Geocoder, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{rng: rng, geo: geo, logger: logger}
}

// Variations returns up to n distinct addresses shaped
// "number road, city, country". Geocoder failure degrades to the
// synthetic road pool for the city's script; implausible products are
// discarded, so a degenerate city or country can yield fewer than n.
func (g *Generator) Variations(ctx context.Context, city, country string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)

	roads := g.roads(ctx, city, country)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for attempts := 0; len(out) < n && attempts < 5*n; attempts++ {
		road := roads[g.rng.IntN(len(roads))]
		addr := fmt.Sprintf("%d %s, %s, %s", 1+g.rng.IntN(999), road, city, country)
		if !plausible(addr) {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

func (g *Generator) roads(ctx context.Context, city, country string) []string {
	if g.geo != nil {
		places, err := g.geo.Search(ctx, city, country)
		if err != nil {
			g.logger.Warn("geocoder failed, using synthetic roads",
				"city", city, "country", country, "error", err)
		}
		roads := make([]string, 0, len(places))
		dedup := make(map[string]struct{}, len(places))
		for _, p := range places {
			road := strings.TrimSpace(p.Road)
			if road == "" {
				continue
			}
			if _, dup := dedup[strings.ToLower(road)]; dup {
				continue
			}
			dedup[strings.ToLower(road)] = struct{}{}
			roads = append(roads, road)
		}
		if len(roads) > 0 {
			return roads
		}
	}
	switch script.Detect(city) {
	case script.Arabic:
		return arabicRoads
	case script.Cyrillic:
		return europeanRoads
	default:
		return defaultRoads
	}
}

// plausible keeps addresses that look like addresses: long enough to
// carry a road, city, and country, short enough to be one line, with
// a leading house number and no junk characters.
func plausible(addr string) bool {
	n := len([]rune(addr))
	if n < 30 || n > 300 {
		return false
	}
	letters := 0
	unique := make(map[rune]struct{}, n)
	for _, r := range addr {
		if unicode.IsLetter(r) {
			letters++
		}
		unique[r] = struct{}{}
	}
	if letters < 20 || len(unique) < 5 {
		return false
	}
	if strings.Count(addr, ",") < 2 {
		return false
	}
	first, _, _ := strings.Cut(addr, " ")
	if first == "" || !unicode.IsDigit([]rune(first)[0]) {
		return false
	}
	return !strings.ContainsAny(addr, forbiddenChars)
}
