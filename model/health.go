package model

import (
	"sync"
	"time"
)

// EndpointHealth is an observed snapshot of one endpoint's request
// history and circuit state.
type EndpointHealth struct {
	// Available is false while the circuit is open.
	Available bool `json:"available"`

	// LastSuccess and LastFailure timestamp the most recent outcomes.
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastFailure time.Time `json:"last_failure,omitempty"`

	// FailureCount counts consecutive failures; any success resets it.
	FailureCount int `json:"failure_count"`

	// CircuitOpen and CircuitOpenedAt describe a tripped breaker.
	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig sets the circuit breaker thresholds.
type HealthConfig struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit blocks requests
	// before admitting a probe.
	RecoveryTimeout time.Duration

	// HalfOpenRequests is how many probe requests the half-open state
	// admits.
	HalfOpenRequests int
}

// DefaultHealthConfig suits local Ollama endpoints, where a failure
// usually means the model is not loaded and recovery is quick.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// healthState stores per-endpoint health, guarded by its own lock so request
// outcome bookkeeping never contends with registry configuration reads.
type healthState struct {
	mu       sync.RWMutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		statuses: map[string]*EndpointHealth{},
	}
}

// ensure returns the status for an endpoint, creating it if needed.
// Callers must hold h.mu.
func (h *healthState) ensure(name string) *EndpointHealth {
	st, ok := h.statuses[name]
	if !ok {
		st = &EndpointHealth{Available: true}
		h.statuses[name] = st
	}
	return st
}

func (h *healthState) markSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.ensure(name)
	st.LastSuccess = time.Now()
	st.FailureCount = 0
	st.Available = true
	st.CircuitOpen = false
}

func (h *healthState) markFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.ensure(name)
	st.LastFailure = time.Now()
	st.FailureCount++

	if st.FailureCount >= h.config.FailureThreshold {
		st.CircuitOpen = true
		st.CircuitOpenedAt = time.Now()
		st.Available = false
	}
}

// available reports whether an endpoint may receive requests. An open circuit
// admits a test request once the recovery timeout has passed (half-open).
func (h *healthState) available(name string) bool {
	h.mu.RLock()
	st, ok := h.statuses[name]
	if !ok {
		h.mu.RUnlock()
		return true
	}
	open := st.CircuitOpen
	openedAt := st.CircuitOpenedAt
	recovery := h.config.RecoveryTimeout
	h.mu.RUnlock()

	if !open {
		return true
	}
	return time.Since(openedAt) > recovery
}

// snapshot returns a copy of an endpoint's health, or nil if untracked.
func (h *healthState) snapshot(name string) *EndpointHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, ok := h.statuses[name]
	if !ok {
		return nil
	}
	copied := *st
	return &copied
}

// state returns the health tracker, creating it lazily with defaults.
func (reg *Registry) state() *healthState {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.health == nil {
		reg.health = newHealthState(DefaultHealthConfig())
	}
	return reg.health
}

// tracker returns the health tracker without creating it. Nil means no
// request outcome has ever been recorded.
func (reg *Registry) tracker() *healthState {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.health
}

// MarkEndpointSuccess notes that a request to the endpoint worked. The
// circuit closes and the failure streak resets.
func (reg *Registry) MarkEndpointSuccess(name string) {
	reg.state().markSuccess(name)
}

// MarkEndpointFailure notes a failed request. A long enough streak of
// these opens the circuit.
func (reg *Registry) MarkEndpointFailure(name string) {
	reg.state().markFailure(name)
}

// IsEndpointAvailable reports whether the endpoint should receive
// requests right now. False means its circuit is open and the recovery
// window has not elapsed.
func (reg *Registry) IsEndpointAvailable(name string) bool {
	h := reg.tracker()
	if h == nil {
		return true
	}
	return h.available(name)
}

// GetEndpointHealth returns a copy of the endpoint's recorded health,
// or nil when nothing has been recorded for it.
func (reg *Registry) GetEndpointHealth(name string) *EndpointHealth {
	h := reg.tracker()
	if h == nil {
		return nil
	}
	return h.snapshot(name)
}

// GetAvailableFallbackChain returns the capability's chain filtered to
// endpoints whose circuits admit traffic.
func (reg *Registry) GetAvailableFallbackChain(cap Capability) []string {
	chain := reg.GetFallbackChain(cap)

	avail := make([]string, 0, len(chain))
	for _, name := range chain {
		if reg.IsEndpointAvailable(name) {
			avail = append(avail, name)
		}
	}
	// Better to try something than nothing when every circuit is open.
	if len(avail) == 0 {
		return chain
	}
	return avail
}

// SetHealthConfig replaces the circuit breaker thresholds.
func (reg *Registry) SetHealthConfig(cfg HealthConfig) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.health == nil {
		reg.health = newHealthState(cfg)
		return
	}
	reg.health.mu.Lock()
	reg.health.config = cfg
	reg.health.mu.Unlock()
}

// ResetEndpointHealth forgets everything recorded about the endpoint.
func (reg *Registry) ResetEndpointHealth(name string) {
	h := reg.tracker()
	if h == nil {
		return
	}
	h.mu.Lock()
	delete(h.statuses, name)
	h.mu.Unlock()
}
