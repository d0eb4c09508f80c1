package llm

import "time"

// RetryConfig tunes the per-endpoint retry loop. Attempts after the
// first wait BaseInterval scaled by Multiplier each round, capped at
// MaxInterval; the client adds jitter on top.
type RetryConfig struct {
	MaxAttempts  int
	BaseInterval time.Duration
	Multiplier   float64
	MaxInterval  time.Duration
}

// DefaultRetryConfig suits local Ollama and hosted OpenAI-compatible
// endpoints alike: three attempts, two second base, doubling to a
// thirty second ceiling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseInterval: 2 * time.Second,
		Multiplier:   2.0,
		MaxInterval:  30 * time.Second,
	}
}
