package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// localOllamaURL is where a stock Ollama install listens.
const localOllamaURL = "http://localhost:11434/v1"

// defaultContextTokens is the context window assumed for the built-in
// endpoints.
const defaultContextTokens = 128000

// Registry maps capabilities to model preference chains and holds the
// endpoint table. It also tracks per-endpoint health so callers can skip
// endpoints with open circuits. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaults     *DefaultsConfig
	health       *healthState
}

// CapabilityConfig lists the models serving one capability, best first.
type CapabilityConfig struct {
	// Description says what the capability covers.
	Description string `json:"description"`

	// Preferred models, tried in order.
	Preferred []string `json:"preferred"`

	// Fallback models, tried after every preferred model has failed.
	Fallback []string `json:"fallback"`
}

// EndpointConfig describes where a named model actually lives.
type EndpointConfig struct {
	// Provider selects the registered LLM provider (ollama, openai).
	Provider string `json:"provider"`

	// URL overrides the provider's default endpoint when set.
	URL string `json:"url,omitempty"`

	// Model is the identifier sent on the wire, tag included.
	Model string `json:"model"`

	// MaxTokens caps the context window.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// DefaultsConfig names the model used when no capability matches.
type DefaultsConfig struct {
	Model string `json:"model"`
}

// NewRegistry builds a registry from explicit capability and endpoint
// tables.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaults:     &DefaultsConfig{Model: "default"},
	}
}

func ollamaEndpoint(wireModel string) *EndpointConfig {
	return &EndpointConfig{
		Provider:  "ollama",
		URL:       localOllamaURL,
		Model:     wireModel,
		MaxTokens: defaultContextTokens,
	}
}

// NewDefaultRegistry returns the built-in registry. Everything points at
// a local Ollama install, with OpenAI as the last resort for naming
// tasks.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityNaming: {
				Description: "Name variant synthesis, spelling and phonetic alternatives",
				Preferred:   []string{"llama3.1"},
				Fallback:    []string{"qwen2.5", "gpt-4o-mini"},
			},
			CapabilityTransliteration: {
				Description: "Cross-script name rendering",
				Preferred:   []string{"qwen2.5"},
				Fallback:    []string{"llama3.1"},
			},
			CapabilityFast: {
				Description: "Quick responses, simple tasks",
				Preferred:   []string{"llama3.2"},
				Fallback:    []string{"llama3.1"},
			},
		},
		endpoints: map[string]*EndpointConfig{
			"llama3.1": ollamaEndpoint("llama3.1:latest"),
			"llama3.2": ollamaEndpoint("llama3.2"),
			"qwen2.5":  ollamaEndpoint("qwen2.5:7b"),
			"gpt-4o-mini": {
				Provider:  "openai",
				Model:     "gpt-4o-mini",
				MaxTokens: defaultContextTokens,
			},
		},
		defaults: &DefaultsConfig{Model: "llama3.1"},
	}
}

// Resolve returns the first preferred model for a capability, or the
// registry default when the capability is unknown. Fallback on failure
// is the client's job.
func (reg *Registry) Resolve(cap Capability) string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	cfg := reg.capabilities[cap]
	if cfg == nil || len(cfg.Preferred) == 0 {
		return reg.defaults.Model
	}
	return cfg.Preferred[0]
}

// GetFallbackChain returns every model for a capability, preferred
// before fallback, in try order.
func (reg *Registry) GetFallbackChain(cap Capability) []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	cfg := reg.capabilities[cap]
	if cfg == nil {
		return []string{reg.defaults.Model}
	}
	return slices.Concat(cfg.Preferred, cfg.Fallback)
}

// GetEndpoint returns the endpoint for a model name, nil when the model
// is not configured.
func (reg *Registry) GetEndpoint(name string) *EndpointConfig {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.endpoints[name]
}

// SetCapability adds or replaces a capability's chain.
func (reg *Registry) SetCapability(cap Capability, cfg *CapabilityConfig) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.capabilities == nil {
		reg.capabilities = map[Capability]*CapabilityConfig{}
	}
	reg.capabilities[cap] = cfg
}

// SetEndpoint adds or replaces a named endpoint.
func (reg *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.endpoints == nil {
		reg.endpoints = map[string]*EndpointConfig{}
	}
	reg.endpoints[name] = cfg
}

// SetDefault names the model used when no capability matches.
func (reg *Registry) SetDefault(model string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.defaults == nil {
		reg.defaults = &DefaultsConfig{}
	}
	reg.defaults.Model = model
}

// ListCapabilities returns the configured capabilities in map order.
func (reg *Registry) ListCapabilities() []Capability {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return slices.Collect(maps.Keys(reg.capabilities))
}

// ListEndpoints returns the configured endpoint names in map order.
func (reg *Registry) ListEndpoints() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return slices.Collect(maps.Keys(reg.endpoints))
}

// Validate reports every model referenced by a capability chain or by
// the default that is missing from the endpoint table.
func (reg *Registry) Validate() error {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var errs []error
	check := func(cap Capability, role, name string) {
		if _, ok := reg.endpoints[name]; !ok {
			errs = append(errs, fmt.Errorf("capability %q: %s model %q not found in endpoints", cap, role, name))
		}
	}
	for cap, cfg := range reg.capabilities {
		for _, name := range cfg.Preferred {
			check(cap, "preferred", name)
		}
		for _, name := range cfg.Fallback {
			check(cap, "fallback", name)
		}
	}
	// "default" is the NewRegistry placeholder, not a real endpoint.
	if reg.defaults != nil && reg.defaults.Model != "" && reg.defaults.Model != "default" {
		if _, ok := reg.endpoints[reg.defaults.Model]; !ok {
			errs = append(errs, fmt.Errorf("default model %q not found in endpoints", reg.defaults.Model))
		}
	}
	return errors.Join(errs...)
}

// registryJSON is the wire form shared by MarshalJSON and UnmarshalJSON.
type registryJSON struct {
	Capabilities map[Capability]*CapabilityConfig `json:"capabilities"`
	Endpoints    map[string]*EndpointConfig       `json:"endpoints"`
	Defaults     *DefaultsConfig                  `json:"defaults,omitempty"`
}

func (reg *Registry) MarshalJSON() ([]byte, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return json.Marshal(registryJSON{
		Capabilities: reg.capabilities,
		Endpoints:    reg.endpoints,
		Defaults:     reg.defaults,
	})
}

func (reg *Registry) UnmarshalJSON(data []byte) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var wire registryJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	reg.capabilities = wire.Capabilities
	reg.endpoints = wire.Endpoints
	reg.defaults = wire.Defaults
	return nil
}
