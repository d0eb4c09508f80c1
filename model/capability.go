// Package model provides capability-based model selection for enrichment calls.
// Instead of hardcoding model names, callers specify capabilities (naming,
// transliteration) and the registry resolves them to available models with
// fallback chains.
package model

import "github.com/c360studio/doppel/script"

// Capability names what a model is needed for, so call sites ask for
// "naming" or "transliteration" and the registry picks the model.
type Capability string

const (
	// CapabilityNaming is for synthesizing spelling and phonetic name variants.
	CapabilityNaming Capability = "naming"

	// CapabilityTransliteration is for rendering names across scripts.
	CapabilityTransliteration Capability = "transliteration"

	// CapabilityFast is for cheap, low-latency calls.
	CapabilityFast Capability = "fast"
)

// CapabilityForScript returns the capability used to enrich seeds in a script.
// Latin seeds ask for spelling variants; everything else needs a cross-script
// rendering first.
func CapabilityForScript(sc script.Script) Capability {
	if sc == script.Latin {
		return CapabilityNaming
	}
	return CapabilityTransliteration
}

// IsValid reports whether c is one of the known capabilities.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityNaming, CapabilityTransliteration, CapabilityFast:
		return true
	}
	return false
}

// String returns the capability name.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability returns the named capability, or empty when s is not one.
func ParseCapability(s string) Capability {
	if c := Capability(s); c.IsValid() {
		return c
	}
	return ""
}
