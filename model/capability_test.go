package model

import (
	"testing"

	"github.com/c360studio/doppel/script"
)

func TestCapabilityForScript(t *testing.T) {
	cases := []struct {
		sc   script.Script
		want Capability
	}{
		{script.Latin, CapabilityNaming},
		{script.Cyrillic, CapabilityTransliteration},
		{script.Arabic, CapabilityTransliteration},
		{script.CJK, CapabilityTransliteration},
	}
	for _, tc := range cases {
		if got := CapabilityForScript(tc.sc); got != tc.want {
			t.Errorf("CapabilityForScript(%q) = %q, want %q", tc.sc, got, tc.want)
		}
	}
}

func TestCapabilityIsValid(t *testing.T) {
	for _, c := range []Capability{CapabilityNaming, CapabilityTransliteration, CapabilityFast} {
		if !c.IsValid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Capability{Capability("invalid"), Capability("")} {
		if c.IsValid() {
			t.Errorf("%q should not be valid", c)
		}
	}
}

func TestParseCapability(t *testing.T) {
	cases := []struct {
		in   string
		want Capability
	}{
		{"naming", CapabilityNaming},
		{"transliteration", CapabilityTransliteration},
		{"fast", CapabilityFast},
		{"invalid", ""},
		{"", ""},
		{"NAMING", ""}, // case-sensitive
	}
	for _, tc := range cases {
		if got := ParseCapability(tc.in); got != tc.want {
			t.Errorf("ParseCapability(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCapabilityString(t *testing.T) {
	want := map[Capability]string{
		CapabilityNaming:          "naming",
		CapabilityTransliteration: "transliteration",
		CapabilityFast:            "fast",
	}
	for c, s := range want {
		if c.String() != s {
			t.Errorf("Capability.String() = %q, want %q", c.String(), s)
		}
		if ParseCapability(s) != c {
			t.Errorf("ParseCapability(%q) did not round-trip", s)
		}
	}
}
