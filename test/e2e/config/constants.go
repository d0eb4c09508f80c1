// Package config carries the run settings and wire constants shared by
// the e2e suite.
package config

import "time"

// Connection defaults for a local compose stack.
const (
	DefaultNATSURL     = "nats://localhost:4222"
	DefaultHTTPBaseURL = "http://localhost:8080"
)

// Timing defaults.
const (
	DefaultSetupTimeout = 60 * time.Second
	DefaultStageTimeout = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultAbsenceWindow is how long a scenario watches a subject to
	// conclude that no message is coming.
	DefaultAbsenceWindow = 5 * time.Second
)

// NATS subjects for doppel requests and results.
const (
	// RequestSubjectPrefix is the prefix for variation request subjects.
	// Full subject: doppel.request.{requester}
	RequestSubjectPrefix = "doppel.request"

	// ResultSubjectPrefix is the prefix for variation result subjects.
	// Full subject: doppel.result.{request_id}
	ResultSubjectPrefix = "doppel.result"

	// StreamName is the JetStream stream carrying both.
	StreamName = "DOPPEL"
)

// E2E test identifiers. The doppel instance under test must allowlist
// AdmittedRequester at full weight; StrangerRequester must stay off the
// allowlist so rejection paths can be exercised.
const (
	AdmittedRequester = "e2e-runner"
	StrangerRequester = "e2e-stranger"
)

// Config is the resolved configuration for one e2e run.
type Config struct {
	NATSURL      string        `json:"nats_url"`
	HTTPBaseURL  string        `json:"http_base_url"`
	SetupTimeout time.Duration `json:"setup_timeout"`
	StageTimeout time.Duration `json:"stage_timeout"`
}

// DefaultConfig targets the local compose stack.
func DefaultConfig() *Config {
	return &Config{
		NATSURL:      DefaultNATSURL,
		HTTPBaseURL:  DefaultHTTPBaseURL,
		SetupTimeout: DefaultSetupTimeout,
		StageTimeout: DefaultStageTimeout,
	}
}
