package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryFromJSON(t *testing.T) {
	t.Run("wrapped in model_registry key", func(t *testing.T) {
		src := []byte(`{"model_registry": {
			"capabilities": {"naming": {"description": "Name variation generation", "preferred": ["model-a"], "fallback": ["model-b"]}},
			"endpoints": {"model-a": {"provider": "test", "model": "test-model"}},
			"defaults": {"model": "model-a"}
		}}`)

		reg, err := RegistryFromJSON(src)
		if err != nil {
			t.Fatalf("RegistryFromJSON: %v", err)
		}
		if got := reg.Resolve(CapabilityNaming); got != "model-a" {
			t.Errorf("Resolve(naming) = %q, want model-a", got)
		}
		// Capabilities the file does not mention keep their default chains.
		if got := reg.Resolve(CapabilityTransliteration); got == "" {
			t.Error("transliteration should still resolve after a naming-only override")
		}
	})

	t.Run("bare registry object", func(t *testing.T) {
		src := []byte(`{
			"capabilities": {"transliteration": {"preferred": ["qwen"], "fallback": ["llama"]}},
			"endpoints": {"qwen": {"provider": "ollama", "model": "qwen2.5:7b"}}
		}`)

		reg, err := RegistryFromJSON(src)
		if err != nil {
			t.Fatalf("RegistryFromJSON: %v", err)
		}
		if got := reg.Resolve(CapabilityTransliteration); got != "qwen" {
			t.Errorf("Resolve(transliteration) = %q, want qwen", got)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		if _, err := RegistryFromJSON([]byte(`not valid json`)); err == nil {
			t.Error("RegistryFromJSON should reject malformed input")
		}
	})
}

func TestRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	src := []byte(`{"model_registry": {
		"capabilities": {"fast": {"preferred": ["snappy"], "fallback": []}},
		"endpoints": {"snappy": {"provider": "local", "model": "snappy:1b"}}
	}}`)
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reg, err := RegistryFromFile(path)
	if err != nil {
		t.Fatalf("RegistryFromFile: %v", err)
	}
	if got := reg.Resolve(CapabilityFast); got != "snappy" {
		t.Errorf("Resolve(fast) = %q, want snappy", got)
	}
}

func TestRegistryFromFileMissing(t *testing.T) {
	if _, err := RegistryFromFile("/nonexistent/path/models.json"); err == nil {
		t.Error("RegistryFromFile should fail for a missing path")
	}
}

func TestMergeFromConfig(t *testing.T) {
	reg := NewDefaultRegistry()

	caps := map[string]*CapabilityConfig{
		"naming": {Description: "Updated naming", Preferred: []string{"new-namer"}},
	}
	eps := map[string]*EndpointConfig{
		"new-namer": {Provider: "custom", Model: "namer-v2"},
	}
	reg.MergeFromConfig(&RegistryConfig{Capabilities: caps, Endpoints: eps})

	if got := reg.Resolve(CapabilityNaming); got != "new-namer" {
		t.Errorf("Resolve(naming) = %q after merge, want new-namer", got)
	}
	if got := reg.Resolve(CapabilityTransliteration); got == "" {
		t.Error("unmentioned capability should survive the merge")
	}
	if reg.GetEndpoint("new-namer") == nil {
		t.Error("merged endpoint should be registered")
	}
	if reg.GetEndpoint("llama3.1") == nil {
		t.Error("default endpoints should survive the merge")
	}
}

func TestMergeFromConfigDefaults(t *testing.T) {
	reg := NewDefaultRegistry()
	reg.MergeFromConfig(&RegistryConfig{Defaults: &DefaultsConfig{Model: "override-default"}})

	if got := reg.Resolve(Capability("unmapped")); got != "override-default" {
		t.Errorf("Resolve(unmapped) = %q, want override-default", got)
	}
}
