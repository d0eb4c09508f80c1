package addressgen_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/c360studio/doppel/addressgen"
	"github.com/c360studio/doppel/geocode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeocoder struct {
	places []geocode.Place
	err    error
	calls  int
}

func (f *fakeGeocoder) Search(context.Context, string, string) ([]geocode.Place, error) {
	f.calls++
	return f.places, f.err
}

func newGenerator(seed uint64, geo addressgen.Geocoder) *addressgen.Generator {
	return addressgen.NewGenerator(rand.New(rand.NewPCG(seed, seed)), geo, nil)
}

var addressShape = regexp.MustCompile(`^\d{1,3} .+, .+, .+$`)

func TestVariationsUseGeocodedRoads(t *testing.T) {
	geo := &fakeGeocoder{places: []geocode.Place{
		{Road: "Pennsylvania Avenue"},
		{Road: "Constitution Avenue"},
		{Road: "Pennsylvania Avenue"},
	}}
	out, err := newGenerator(1, geo).Variations(context.Background(), "Washington", "United States", 8)
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.Equal(t, 1, geo.calls)

	for _, addr := range out {
		assert.Regexp(t, addressShape, addr)
		assert.True(t, strings.HasSuffix(addr, ", Washington, United States"), addr)
		ok := strings.Contains(addr, "Pennsylvania Avenue") || strings.Contains(addr, "Constitution Avenue")
		assert.True(t, ok, addr)
	}
}

func TestVariationsDistinct(t *testing.T) {
	geo := &fakeGeocoder{places: []geocode.Place{{Road: "Main Street"}}}
	out, err := newGenerator(2, geo).Variations(context.Background(), "Springfield", "United States", 10)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, addr := range out {
		_, dup := seen[addr]
		assert.False(t, dup, "duplicate %q", addr)
		seen[addr] = struct{}{}
	}
}

func TestVariationsGeocoderFailureFallsBack(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("nominatim unreachable")}
	out, err := newGenerator(3, geo).Variations(context.Background(), "Springfield", "United States", 5)
	require.NoError(t, err)
	require.Len(t, out, 5)
	for _, addr := range out {
		assert.Regexp(t, addressShape, addr)
	}
}

func TestVariationsWithoutGeocoder(t *testing.T) {
	out, err := newGenerator(4, nil).Variations(context.Background(), "Springfield", "United States", 5)
	require.NoError(t, err)
	assert.Len(t, out, 5)
}

func TestVariationsArabicCityUsesArabicPool(t *testing.T) {
	out, err := newGenerator(5, nil).Variations(context.Background(), "القاهرة", "Egypt", 5)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	pool := []string{
		"Al Quds Street", "King Faisal Road", "Al Nour Avenue",
		"Corniche Road", "Al Salam Street", "Al Madina Road",
		"Al Wahda Street", "Palm Grove Avenue",
	}
	for _, addr := range out {
		found := false
		for _, road := range pool {
			if strings.Contains(addr, road) {
				found = true
				break
			}
		}
		assert.True(t, found, addr)
	}
}

func TestVariationsImplausibleInputsYieldNothing(t *testing.T) {
	geo := &fakeGeocoder{places: []geocode.Place{{Road: "St"}}}
	out, err := newGenerator(6, geo).Variations(context.Background(), "X", "Y", 4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVariationsZeroCount(t *testing.T) {
	out, err := newGenerator(7, nil).Variations(context.Background(), "Springfield", "United States", 0)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestVariationsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newGenerator(8, nil).Variations(ctx, "Springfield", "United States", 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVariationsDeterministicUnderFixedSeed(t *testing.T) {
	first, err := newGenerator(42, nil).Variations(context.Background(), "Springfield", "United States", 10)
	require.NoError(t, err)
	second, err := newGenerator(42, nil).Variations(context.Background(), "Springfield", "United States", 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
