package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
)

// RegistryConfig is the JSON file format for operator model overrides,
// referenced from the llm config section. Entries overlay the default
// registry, so a file naming one endpoint leaves the other capability
// chains intact.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty"`
}

// RegistryFromFile reads a models file and overlays it on the default
// registry.
func RegistryFromFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models file: %w", err)
	}
	return RegistryFromJSON(raw)
}

// RegistryFromJSON builds a registry from JSON: the defaults plus whatever
// the data overrides. Accepts the config wrapped under a
// "model_registry" key or bare.
func RegistryFromJSON(data []byte) (*Registry, error) {
	var wrapped struct {
		ModelRegistry *RegistryConfig `json:"model_registry"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.ModelRegistry != nil {
		return overlayDefaults(wrapped.ModelRegistry), nil
	}

	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse models config: %w", err)
	}
	return overlayDefaults(&cfg), nil
}

func overlayDefaults(cfg *RegistryConfig) *Registry {
	reg := NewDefaultRegistry()
	reg.MergeFromConfig(cfg)
	return reg
}

// MergeFromConfig overlays cfg onto the registry. Capability and
// endpoint entries replace existing ones wholesale; names outside the
// known capability set are kept verbatim so operators can define their
// own.
func (reg *Registry) MergeFromConfig(cfg *RegistryConfig) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for name, capCfg := range cfg.Capabilities {
		key := ParseCapability(name)
		if key == "" {
			key = Capability(name)
		}
		reg.capabilities[key] = capCfg
	}
	maps.Copy(reg.endpoints, cfg.Endpoints)
	if cfg.Defaults != nil {
		reg.defaults = cfg.Defaults
	}
}
