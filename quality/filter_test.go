package quality_test

import (
	"testing"

	"github.com/c360studio/doppel/quality"
	"github.com/stretchr/testify/assert"
)

func TestAcceptBasics(t *testing.T) {
	f := quality.NewFilter()
	seen := quality.NewSeen()

	assert.True(t, f.Accept("Smyth", "Smith", seen))

	tests := []struct {
		name string
		cand string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"equals seed", "Smith"},
		{"equals seed ignoring case", "sMITH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, f.Accept(tt.cand, "Smith", seen))
		})
	}
}

func TestAcceptRejectsAlreadyAccepted(t *testing.T) {
	f := quality.NewFilter()
	seen := quality.NewSeen()
	seen.Add("Smyth")

	assert.False(t, f.Accept("smyth", "Smith", seen))
	assert.False(t, f.Accept("SMYTH", "Smith", seen))
}

func TestAcceptLengthTolerance(t *testing.T) {
	f := quality.NewFilter()
	seen := quality.NewSeen()

	// Default tolerance is three characters either way.
	assert.True(t, f.Accept("Johnathan", "Johnat", seen))
	assert.False(t, f.Accept("Jo", "Johnathan", seen))
	assert.False(t, f.Accept("Johnathander", "Johnat", seen))

	wide := &quality.Filter{LengthTolerance: 10}
	assert.True(t, wide.Accept("Jo", "Johnathan", seen))
}

func TestAcceptRejectsAddressAndDateSmells(t *testing.T) {
	f := quality.NewFilter()
	seen := quality.NewSeen()

	tests := []struct {
		name string
		cand string
		seed string
	}{
		{"digits", "J0hn Smith", "John Smith"},
		{"street keyword", "Elm Street", "John Smith"},
		{"direction word", "John North", "John Smith"},
		{"month name", "May Johnson", "Kay Johnson"},
		{"date word", "Born Smith", "John Smith"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, f.Accept(tt.cand, tt.seed, seen))
		})
	}
}

func TestAcceptRejectsProblematicStructure(t *testing.T) {
	f := quality.NewFilter()
	seen := quality.NewSeen()

	tests := []struct {
		name string
		cand string
		seed string
	}{
		{"generic placeholder", "Test", "Tess"},
		{"underscore", "John_Smith", "John Smith"},
		{"bang", "John! Smith", "Johan Smith"},
		{"double space", "John  Smith", "John Smith"},
		{"leading hyphen", "-John Smith", "John Smith"},
		{"trailing dot", "John Smith.", "John Smith"},
		{"all uppercase", "JOHN SMITH", "John Smith"},
		{"all lowercase", "john smyth", "John Smith"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, f.Accept(tt.cand, tt.seed, seen))
		})
	}

	// Two characters or fewer are exempt from the case checks.
	assert.True(t, f.Accept("JS", "John", seen))
}

func TestAcceptWordCountDrift(t *testing.T) {
	f := quality.NewFilter()
	seen := quality.NewSeen()

	// One extra part is tolerated, two are not.
	assert.True(t, f.Accept("Jon Lee Smith", "John Smith", seen))
	assert.False(t, f.Accept("J M R Smit", "John Smith", seen))
}

func TestAcceptNearDuplicates(t *testing.T) {
	f := quality.NewFilter()

	t.Run("identical character set", func(t *testing.T) {
		seen := quality.NewSeen()
		seen.Add("Anna Maria")
		assert.False(t, f.Accept("Maria Anna", "Anna Marie", seen))
	})

	t.Run("single trailing character", func(t *testing.T) {
		seen := quality.NewSeen()
		seen.Add("Smyth")
		assert.False(t, f.Accept("Smythe", "Smith", seen))
	})

	t.Run("nickname pair", func(t *testing.T) {
		seen := quality.NewSeen()
		seen.Add("Jon Smith")
		assert.False(t, f.Accept("John Smyth", "Johan Smith", seen))
	})

	t.Run("unrelated accepted entries do not block", func(t *testing.T) {
		seen := quality.NewSeen()
		seen.Add("Carver Lee")
		assert.True(t, f.Accept("Smyth", "Smith", seen))
	})
}

func TestSeen(t *testing.T) {
	seen := quality.NewSeen()
	assert.Zero(t, seen.Len())
	assert.False(t, seen.Has("Smyth"))

	seen.Add("Smyth")
	seen.Add("SMYTH")
	assert.Equal(t, 1, seen.Len())
	assert.True(t, seen.Has("smyth"))
	assert.True(t, seen.Has("Smyth"))
}
