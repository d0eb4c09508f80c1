package model

import (
	"slices"
	"testing"
	"time"
)

func TestHealthSnapshotAfterSuccess(t *testing.T) {
	reg := NewDefaultRegistry()

	if !reg.IsEndpointAvailable("llama3.1") {
		t.Error("endpoints should start available")
	}
	if h := reg.GetEndpointHealth("llama3.1"); h != nil {
		t.Error("no health snapshot expected before any requests")
	}

	reg.MarkEndpointSuccess("llama3.1")

	h := reg.GetEndpointHealth("llama3.1")
	if h == nil {
		t.Fatal("expected health snapshot after success")
	}
	if !h.Available {
		t.Error("endpoint should be available after a success")
	}
	if h.FailureCount != 0 {
		t.Errorf("failure count = %d, want 0", h.FailureCount)
	}
	if h.LastSuccess.IsZero() {
		t.Error("last success timestamp should be set")
	}
}

func TestCircuitOpensAtThreshold(t *testing.T) {
	reg := NewDefaultRegistry()
	reg.SetHealthConfig(HealthConfig{FailureThreshold: 2, RecoveryTimeout: 100 * time.Millisecond})

	reg.MarkEndpointFailure("llama3.1")
	if !reg.IsEndpointAvailable("llama3.1") {
		t.Error("one failure below threshold should leave the endpoint available")
	}

	reg.MarkEndpointFailure("llama3.1")
	if reg.IsEndpointAvailable("llama3.1") {
		t.Error("endpoint should be unavailable once the circuit opens")
	}

	h := reg.GetEndpointHealth("llama3.1")
	if h == nil {
		t.Fatal("expected health snapshot")
	}
	if !h.CircuitOpen {
		t.Error("snapshot should report an open circuit")
	}
	if h.FailureCount != 2 {
		t.Errorf("failure count = %d, want 2", h.FailureCount)
	}
}

func TestCircuitRecoversAfterTimeout(t *testing.T) {
	reg := NewDefaultRegistry()
	reg.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})

	reg.MarkEndpointFailure("llama3.1")
	if reg.IsEndpointAvailable("llama3.1") {
		t.Error("endpoint should be unavailable right after the circuit opens")
	}

	time.Sleep(75 * time.Millisecond)

	// Past the recovery timeout the endpoint is offered again (half-open).
	if !reg.IsEndpointAvailable("llama3.1") {
		t.Error("endpoint should be offered again after the recovery timeout")
	}

	reg.MarkEndpointSuccess("llama3.1")
	h := reg.GetEndpointHealth("llama3.1")
	if h == nil {
		t.Fatal("expected health snapshot")
	}
	if h.CircuitOpen {
		t.Error("a success should close the circuit")
	}
	if h.FailureCount != 0 {
		t.Errorf("failure count = %d, want 0 after success", h.FailureCount)
	}
}

func TestAvailableFallbackChainSkipsOpenCircuits(t *testing.T) {
	reg := NewDefaultRegistry()
	reg.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	reg.MarkEndpointFailure("qwen2.5")

	chain := reg.GetAvailableFallbackChain(CapabilityNaming)
	if slices.Contains(chain, "qwen2.5") {
		t.Error("tripped endpoint should be filtered out of the chain")
	}
	if !slices.Contains(chain, "llama3.1") {
		t.Error("healthy preferred endpoint should stay in the chain")
	}
}

func TestAvailableFallbackChainWhenAllTripped(t *testing.T) {
	reg := NewDefaultRegistry()
	reg.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	for _, name := range reg.ListEndpoints() {
		reg.MarkEndpointFailure(name)
	}

	// The full chain comes back rather than an empty one, so a caller
	// still has something to try.
	if chain := reg.GetAvailableFallbackChain(CapabilityNaming); len(chain) == 0 {
		t.Error("chain should not be empty when every circuit is open")
	}
}

func TestHealthReset(t *testing.T) {
	reg := NewDefaultRegistry()

	reg.MarkEndpointSuccess("llama3.1")
	reg.MarkEndpointFailure("llama3.1")
	if reg.GetEndpointHealth("llama3.1") == nil {
		t.Fatal("expected health snapshot before reset")
	}

	reg.ResetEndpointHealth("llama3.1")

	if h := reg.GetEndpointHealth("llama3.1"); h != nil {
		t.Error("snapshot should be gone after reset")
	}
	if !reg.IsEndpointAvailable("llama3.1") {
		t.Error("endpoint should be available after reset")
	}
}

func TestHealthConfigDefaults(t *testing.T) {
	got := DefaultHealthConfig()
	if got.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d, want 3", got.FailureThreshold)
	}
	if got.RecoveryTimeout != 30*time.Second {
		t.Errorf("recovery timeout = %v, want 30s", got.RecoveryTimeout)
	}
}
