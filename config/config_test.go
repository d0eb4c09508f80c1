package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig drops a YAML config into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doppel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Generator.TargetCount != 15 {
		t.Errorf("Generator.TargetCount = %d, want 15", cfg.Generator.TargetCount)
	}
	if cfg.Generator.Overgeneration != 3 {
		t.Errorf("Generator.Overgeneration = %d, want 3", cfg.Generator.Overgeneration)
	}
	if cfg.LLM.Enabled {
		t.Error("LLM enrichment should be off by default")
	}
	if cfg.LLM.Temperature != 0.4 {
		t.Errorf("LLM.Temperature = %f, want 0.4", cfg.LLM.Temperature)
	}
	if cfg.Geocode.RatePerSecond != 1 {
		t.Errorf("Geocode.RatePerSecond = %f, want 1", cfg.Geocode.RatePerSecond)
	}
	if len(cfg.NATS.URLs) != 1 || cfg.NATS.URLs[0] != "nats://localhost:4222" {
		t.Errorf("NATS.URLs = %v, want the local default", cfg.NATS.URLs)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default config is valid", func(*Config) {}, false},
		{"zero target count", func(c *Config) { c.Generator.TargetCount = 0 }, true},
		{"overgeneration above three", func(c *Config) { c.Generator.Overgeneration = 4 }, true},
		{"unknown llm capability", func(c *Config) { c.LLM.Capability = "translation" }, true},
		{"known llm capability", func(c *Config) { c.LLM.Capability = "transliteration" }, false},
		{"temperature above one", func(c *Config) { c.LLM.Temperature = 1.1 }, true},
		{"missing geocode user agent", func(c *Config) { c.Geocode.UserAgent = "" }, true},
		{"allowlist weight out of range", func(c *Config) { c.Service.Allowlist = map[string]float64{"miner-7": 1.5} }, true},
		{"no NATS URLs", func(c *Config) { c.NATS.URLs = nil }, true},
		{"bad stream storage", func(c *Config) { c.NATS.StreamStorage = "disk" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
generator:
  target_count: 20
  overgeneration: 2
llm:
  enabled: true
  capability: "fast"
  temperature: 0.6
  max_names: 5
  timeout: 90s
geocode:
  user_agent: "doppel-test/1.0"
  cache_ttl: 30m
service:
  allowlist:
    miner-7: 1.0
    miner-9: 0.6
  min_weight: 0.6
  max_identities: 25
nats:
  urls:
    - "nats://test:4222"
  stream_max_age: 48h
log:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Generator.TargetCount != 20 {
		t.Errorf("Generator.TargetCount = %d, want 20", cfg.Generator.TargetCount)
	}
	if cfg.Generator.Overgeneration != 2 {
		t.Errorf("Generator.Overgeneration = %d, want 2", cfg.Generator.Overgeneration)
	}
	// Fields the file does not set keep their defaults.
	if cfg.Generator.RuleAttempts != 5 {
		t.Errorf("Generator.RuleAttempts = %d, want the default 5", cfg.Generator.RuleAttempts)
	}
	if !cfg.LLM.Enabled {
		t.Error("LLM.Enabled should be true")
	}
	if cfg.LLM.Capability != "fast" {
		t.Errorf("LLM.Capability = %s, want fast", cfg.LLM.Capability)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("LLM.Timeout = %v, want 90s", cfg.LLM.Timeout)
	}
	if cfg.Geocode.UserAgent != "doppel-test/1.0" {
		t.Errorf("Geocode.UserAgent = %s, want doppel-test/1.0", cfg.Geocode.UserAgent)
	}
	if cfg.Geocode.CacheTTL != 30*time.Minute {
		t.Errorf("Geocode.CacheTTL = %v, want 30m", cfg.Geocode.CacheTTL)
	}
	if cfg.Geocode.BaseURL != "https://nominatim.openstreetmap.org/search" {
		t.Errorf("Geocode.BaseURL = %s, want the default to remain", cfg.Geocode.BaseURL)
	}
	if len(cfg.Service.Allowlist) != 2 {
		t.Errorf("allowlist entries = %d, want 2", len(cfg.Service.Allowlist))
	}
	if cfg.Service.Allowlist["miner-9"] != 0.6 {
		t.Errorf("miner-9 weight = %f, want 0.6", cfg.Service.Allowlist["miner-9"])
	}
	if cfg.Service.MaxIdentities != 25 {
		t.Errorf("Service.MaxIdentities = %d, want 25", cfg.Service.MaxIdentities)
	}
	if len(cfg.NATS.URLs) != 1 || cfg.NATS.URLs[0] != "nats://test:4222" {
		t.Errorf("NATS.URLs = %v, want nats://test:4222", cfg.NATS.URLs)
	}
	if cfg.NATS.StreamMaxAge != 48*time.Hour {
		t.Errorf("NATS.StreamMaxAge = %v, want 48h", cfg.NATS.StreamMaxAge)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("DOPPEL_TEST_NATS", "nats://fromenv:4222")

	path := writeConfig(t, `
nats:
  urls:
    - "${DOPPEL_TEST_NATS}"
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if len(cfg.NATS.URLs) != 1 || cfg.NATS.URLs[0] != "nats://fromenv:4222" {
		t.Errorf("NATS.URLs = %v, want the expanded nats://fromenv:4222", cfg.NATS.URLs)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Generator: GeneratorConfig{
			TargetCount: 30,
		},
		Service: ServiceConfig{
			Allowlist: map[string]float64{"miner-7": 1.0},
		},
	}

	base.Merge(override)

	if base.Generator.TargetCount != 30 {
		t.Errorf("Generator.TargetCount = %d, want the override 30", base.Generator.TargetCount)
	}
	// The override left Overgeneration unset, so the base value holds.
	if base.Generator.Overgeneration != 3 {
		t.Errorf("Generator.Overgeneration = %d, want the base default 3", base.Generator.Overgeneration)
	}
	if len(base.Service.Allowlist) != 1 || base.Service.Allowlist["miner-7"] != 1.0 {
		t.Errorf("Service.Allowlist = %v, want the override map", base.Service.Allowlist)
	}
	if base.Geocode.RatePerSecond != 1 {
		t.Errorf("Geocode.RatePerSecond = %f, want the base default 1", base.Geocode.RatePerSecond)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "doppel.yaml")

	cfg := DefaultConfig()
	cfg.Generator.TargetCount = 21

	// SaveToFile creates missing parent directories.
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if loaded.Generator.TargetCount != 21 {
		t.Errorf("Generator.TargetCount = %d, want 21 after the round trip", loaded.Generator.TargetCount)
	}
}
