package variationapi

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/doppel/geocode"
	"github.com/c360studio/doppel/namegen"
	"github.com/c360studio/semstreams/component"
)

// variationSchema defines the configuration schema.
var variationSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the variation API component.
type Config struct {
	// StreamName is the JetStream stream for consuming requests and publishing results.
	StreamName string `json:"stream_name"`

	// ConsumerName is the durable consumer name for request consumption.
	ConsumerName string `json:"consumer_name"`

	// RequestSubject is the subject pattern for variation requests.
	RequestSubject string `json:"request_subject"`

	// ResultSubjectPrefix prefixes result subjects; the request ID is appended.
	ResultSubjectPrefix string `json:"result_subject_prefix"`

	// TargetCount is the variation count per identity when the
	// instruction does not ask for a specific number.
	TargetCount int `json:"target_count"`

	// Generator tunes the name generation engine.
	Generator namegen.Config `json:"generator"`

	// Allowlist maps requester identifiers to admission weights in (0, 1].
	// Requesters not listed are dropped.
	Allowlist map[string]float64 `json:"allowlist"`

	// MinWeight is the smallest admission weight accepted.
	MinWeight float64 `json:"min_weight"`

	// MaxIdentities caps identities accepted per request. Requesters
	// below full weight get half the cap.
	MaxIdentities int `json:"max_identities"`

	// Concurrency bounds how many identities are processed in parallel.
	Concurrency int `json:"concurrency"`

	// RequestTimeout bounds the processing of one request (e.g., "2m").
	RequestTimeout string `json:"request_timeout"`

	// LLM configures optional name enrichment.
	LLM LLMSettings `json:"llm"`

	// Geocode configures the Nominatim client for address synthesis.
	Geocode geocode.Config `json:"geocode"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// LLMSettings configures the enrichment collaborator.
type LLMSettings struct {
	// Enabled turns LLM enrichment on.
	Enabled bool `json:"enabled"`
	// Capability forces a model capability ("naming", "transliteration",
	// "fast"); empty selects by the seed's script.
	Capability string `json:"capability"`
	// Temperature for enrichment calls (0 uses the enricher default).
	Temperature float64 `json:"temperature"`
	// MaxNames caps names requested per enrichment call.
	MaxNames int `json:"max_names"`
	// Timeout bounds one model round trip (e.g., "3m").
	Timeout string `json:"timeout"`
	// ModelsFile optionally points at a JSON registry file whose
	// entries overlay the default model registry.
	ModelsFile string `json:"models_file,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:          "DOPPEL",
		ConsumerName:        "variation-api",
		RequestSubject:      "doppel.request.>",
		ResultSubjectPrefix: "doppel.result",
		TargetCount:         15,
		MinWeight:           0.5,
		MaxIdentities:       50,
		Concurrency:         4,
		RequestTimeout:      "2m",
		LLM: LLMSettings{
			Temperature: 0.4,
			MaxNames:    10,
			Timeout:     "3m",
		},
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "variation-requests",
					Type:        "jetstream",
					Subject:     "doppel.request.>",
					StreamName:  "DOPPEL",
					Description: "Receive identity variation requests",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "variation-results",
					Type:        "jetstream",
					Subject:     "doppel.result.>",
					StreamName:  "DOPPEL",
					Description: "Publish identity variation results",
					Required:    true,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.RequestSubject == "" {
		return fmt.Errorf("request_subject is required")
	}
	if c.ResultSubjectPrefix == "" {
		return fmt.Errorf("result_subject_prefix is required")
	}
	if c.MinWeight < 0 || c.MinWeight > 1 {
		return fmt.Errorf("min_weight must be between 0 and 1")
	}
	for requester, weight := range c.Allowlist {
		if weight <= 0 || weight > 1 {
			return fmt.Errorf("allowlist weight for %q must be between 0 and 1", requester)
		}
	}
	return nil
}

// GetRequestTimeout parses the request timeout, defaulting to 2 minutes.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// GetLLMTimeout parses the LLM timeout, defaulting to 3 minutes.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 3 * time.Minute
	}
	return d
}
