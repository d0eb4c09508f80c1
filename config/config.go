// Package config provides configuration loading and management for Doppel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/doppel/model"
	"gopkg.in/yaml.v3"
)

// Config represents the complete Doppel configuration
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	LLM       LLMConfig       `yaml:"llm"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Service   ServiceConfig   `yaml:"service"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
}

// GeneratorConfig tunes the variation generation pipeline
type GeneratorConfig struct {
	// TargetCount is the number of variations produced per identity (default: 15)
	TargetCount int `yaml:"target_count"`
	// Overgeneration multiplies the free-phase candidate pool (2-3, default: 3)
	Overgeneration int `yaml:"overgeneration"`
	// RuleAttempts multiplies the per-rule retry budget (default: 5)
	RuleAttempts int `yaml:"rule_attempts"`
	// ReconcileAttempts multiplies the shortfall top-up budget (default: 10)
	ReconcileAttempts int `yaml:"reconcile_attempts"`
}

// LLMConfig configures optional LLM name enrichment
type LLMConfig struct {
	// Enabled turns LLM enrichment on (generation stays fully offline without it)
	Enabled bool `yaml:"enabled"`
	// Capability forces a model capability for every enrichment call
	// ("naming", "transliteration", "fast"; empty = select by seed script)
	Capability string `yaml:"capability"`
	// Temperature controls randomness (0.0-1.0, default: 0.4)
	Temperature float64 `yaml:"temperature"`
	// MaxNames caps the names requested per enrichment call (default: 10)
	MaxNames int `yaml:"max_names"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
	// ModelsFile optionally points at a JSON model registry file whose
	// entries overlay the built-in registry
	ModelsFile string `yaml:"models_file"`
}

// GeocodeConfig configures the Nominatim lookup client
type GeocodeConfig struct {
	// BaseURL is the Nominatim search endpoint
	BaseURL string `yaml:"base_url"`
	// UserAgent identifies Doppel to Nominatim (their usage policy requires one)
	UserAgent string `yaml:"user_agent"`
	// RatePerSecond limits outbound queries (default: 1)
	RatePerSecond float64 `yaml:"rate_per_second"`
	// CacheTTL bounds how long successful lookups are reused (default: 1h)
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration `yaml:"timeout"`
}

// ServiceConfig configures request admission for the variation API
type ServiceConfig struct {
	// Allowlist maps requester identifiers to admission weights in (0, 1].
	// Requesters not listed here are dropped.
	Allowlist map[string]float64 `yaml:"allowlist"`
	// MinWeight is the smallest weight admitted (default: 0.5)
	MinWeight float64 `yaml:"min_weight"`
	// MaxIdentities caps identities accepted per request; requesters
	// below full weight get half the cap (default: 50)
	MaxIdentities int `yaml:"max_identities"`
	// Concurrency bounds how many identities are processed in parallel (default: 4)
	Concurrency int `yaml:"concurrency"`
	// RequestTimeout bounds the processing of a single request
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// NATSConfig configures the NATS connection and the DOPPEL stream
type NATSConfig struct {
	// URLs lists NATS server URLs. ${VAR} references are expanded at load time.
	URLs []string `yaml:"urls"`
	// StreamMaxAge bounds how long request and result messages are retained
	StreamMaxAge time.Duration `yaml:"stream_max_age"`
	// StreamStorage is the JetStream backing store ("file" or "memory")
	StreamStorage string `yaml:"stream_storage"`
	// StreamReplicas is the stream replication factor
	StreamReplicas int `yaml:"stream_replicas"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Generator: GeneratorConfig{
			TargetCount:       15,
			Overgeneration:    3,
			RuleAttempts:      5,
			ReconcileAttempts: 10,
		},
		LLM: LLMConfig{
			Enabled:     false,
			Temperature: 0.4,
			MaxNames:    10,
			Timeout:     3 * time.Minute,
		},
		Geocode: GeocodeConfig{
			BaseURL:       "https://nominatim.openstreetmap.org/search",
			UserAgent:     "doppel/0.1 (identity variation synthesis)",
			RatePerSecond: 1,
			CacheTTL:      time.Hour,
			Timeout:       10 * time.Second,
		},
		Service: ServiceConfig{
			Allowlist:      nil, // Nobody admitted until configured
			MinWeight:      0.5,
			MaxIdentities:  50,
			Concurrency:    4,
			RequestTimeout: 2 * time.Minute,
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			StreamMaxAge:   24 * time.Hour,
			StreamStorage:  "file",
			StreamReplicas: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Generator.TargetCount < 1 {
		return fmt.Errorf("generator.target_count must be at least 1")
	}
	if c.Generator.Overgeneration < 2 || c.Generator.Overgeneration > 3 {
		return fmt.Errorf("generator.overgeneration must be 2 or 3")
	}
	if c.LLM.Capability != "" && model.ParseCapability(c.LLM.Capability) == "" {
		return fmt.Errorf("llm.capability must be one of naming, transliteration, fast")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be between 0 and 1")
	}
	if c.Geocode.UserAgent == "" {
		return fmt.Errorf("geocode.user_agent is required")
	}
	if c.Geocode.RatePerSecond <= 0 {
		return fmt.Errorf("geocode.rate_per_second must be positive")
	}
	if c.Service.MinWeight < 0 || c.Service.MinWeight > 1 {
		return fmt.Errorf("service.min_weight must be between 0 and 1")
	}
	for requester, weight := range c.Service.Allowlist {
		if weight <= 0 || weight > 1 {
			return fmt.Errorf("service.allowlist weight for %q must be between 0 and 1", requester)
		}
	}
	if c.Service.MaxIdentities < 1 {
		return fmt.Errorf("service.max_identities must be at least 1")
	}
	if c.Service.Concurrency < 1 {
		return fmt.Errorf("service.concurrency must be at least 1")
	}
	if len(c.NATS.URLs) == 0 {
		return fmt.Errorf("nats.urls must not be empty")
	}
	switch c.NATS.StreamStorage {
	case "file", "memory":
	default:
		return fmt.Errorf("nats.stream_storage must be file or memory")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// NATS URLs may reference environment variables, e.g. ${NATS_URL}
	for i, u := range config.NATS.URLs {
		config.NATS.URLs[i] = os.ExpandEnv(u)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Generator
	if other.Generator.TargetCount != 0 {
		c.Generator.TargetCount = other.Generator.TargetCount
	}
	if other.Generator.Overgeneration != 0 {
		c.Generator.Overgeneration = other.Generator.Overgeneration
	}
	if other.Generator.RuleAttempts != 0 {
		c.Generator.RuleAttempts = other.Generator.RuleAttempts
	}
	if other.Generator.ReconcileAttempts != 0 {
		c.Generator.ReconcileAttempts = other.Generator.ReconcileAttempts
	}

	// LLM
	if other.LLM.Enabled {
		c.LLM.Enabled = true
	}
	if other.LLM.Capability != "" {
		c.LLM.Capability = other.LLM.Capability
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxNames != 0 {
		c.LLM.MaxNames = other.LLM.MaxNames
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.LLM.ModelsFile != "" {
		c.LLM.ModelsFile = other.LLM.ModelsFile
	}

	// Geocode
	if other.Geocode.BaseURL != "" {
		c.Geocode.BaseURL = other.Geocode.BaseURL
	}
	if other.Geocode.UserAgent != "" {
		c.Geocode.UserAgent = other.Geocode.UserAgent
	}
	if other.Geocode.RatePerSecond != 0 {
		c.Geocode.RatePerSecond = other.Geocode.RatePerSecond
	}
	if other.Geocode.CacheTTL != 0 {
		c.Geocode.CacheTTL = other.Geocode.CacheTTL
	}
	if other.Geocode.Timeout != 0 {
		c.Geocode.Timeout = other.Geocode.Timeout
	}

	// Service
	if len(other.Service.Allowlist) > 0 {
		c.Service.Allowlist = other.Service.Allowlist
	}
	if other.Service.MinWeight != 0 {
		c.Service.MinWeight = other.Service.MinWeight
	}
	if other.Service.MaxIdentities != 0 {
		c.Service.MaxIdentities = other.Service.MaxIdentities
	}
	if other.Service.Concurrency != 0 {
		c.Service.Concurrency = other.Service.Concurrency
	}
	if other.Service.RequestTimeout != 0 {
		c.Service.RequestTimeout = other.Service.RequestTimeout
	}

	// NATS
	if len(other.NATS.URLs) > 0 {
		c.NATS.URLs = other.NATS.URLs
	}
	if other.NATS.StreamMaxAge != 0 {
		c.NATS.StreamMaxAge = other.NATS.StreamMaxAge
	}
	if other.NATS.StreamStorage != "" {
		c.NATS.StreamStorage = other.NATS.StreamStorage
	}
	if other.NATS.StreamReplicas != 0 {
		c.NATS.StreamReplicas = other.NATS.StreamReplicas
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
