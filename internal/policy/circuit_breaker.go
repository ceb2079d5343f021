package policy

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
)

// circuitBreakerPolicy implements CircuitBreakerPolicy
type circuitBreakerPolicy struct {
	enabled bool
	// failureThreshold is the number of consecutive failures before opening the circuit
	failureThreshold int
	// successThreshold is the number of successes needed in half-open state to close
	successThreshold int
	// timeout is how long the circuit stays open before transitioning to half-open
	timeout time.Duration
	// circuits tracks circuit state per dependency/operation
	circuits map[string]*circuitState
	mu       sync.RWMutex
}

// circuitState tracks the state of a circuit breaker for a dependency/operation
type circuitState struct {
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	mu              sync.Mutex
}

// NewCircuitBreakerPolicy creates a new circuit breaker policy
func NewCircuitBreakerPolicy(enabled bool, failureThreshold, successThreshold int, timeout time.Duration) CircuitBreakerPolicy {
	return &circuitBreakerPolicy{
		enabled:          enabled,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		circuits:         make(map[string]*circuitState),
	}
}

// NewCircuitBreakerPolicyFromConfig creates a circuit breaker from config.
// An unparsable open timeout falls back to 30s.
func NewCircuitBreakerPolicyFromConfig(cfg *config.CircuitBreakerPolicy) CircuitBreakerPolicy {
	timeout, err := cfg.GetOpenTimeout()
	if err != nil {
		timeout = 30 * time.Second
	}
	return NewCircuitBreakerPolicy(cfg.Enabled, cfg.FailureThreshold, cfg.SuccessThreshold, timeout)
}

func (p *circuitBreakerPolicy) Enabled() bool {
	return p.enabled
}

func (p *circuitBreakerPolicy) Name() string {
	return "circuit_breaker"
}

func (p *circuitBreakerPolicy) AllowRequest(dependency, operation string, now time.Time) bool {
	if !p.enabled {
		return true
	}

	circuit := p.getOrCreate(dependency, operation, now)
	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	p.maybeHalfOpenUnsafe(circuit, now)
	return circuit.state != CircuitStateOpen
}

func (p *circuitBreakerPolicy) RecordSuccess(dependency, operation string, now time.Time) {
	if !p.enabled {
		return
	}

	circuit, exists := p.get(dependency, operation)
	if !exists {
		return
	}

	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	switch circuit.state {
	case CircuitStateHalfOpen:
		circuit.successCount++
		if circuit.successCount >= p.successThreshold {
			circuit.state = CircuitStateClosed
			circuit.failureCount = 0
			circuit.lastStateChange = now
		}
	case CircuitStateClosed:
		// Reset failure count on success
		circuit.failureCount = 0
	}
}

func (p *circuitBreakerPolicy) RecordFailure(dependency, operation string, now time.Time) {
	if !p.enabled {
		return
	}

	circuit := p.getOrCreate(dependency, operation, now)
	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	circuit.failureCount++
	circuit.lastFailureTime = now

	switch circuit.state {
	case CircuitStateHalfOpen:
		// Any failure in half-open state immediately opens the circuit
		circuit.state = CircuitStateOpen
		circuit.successCount = 0
		circuit.lastStateChange = now
	case CircuitStateClosed:
		if circuit.failureCount >= p.failureThreshold {
			circuit.state = CircuitStateOpen
			circuit.lastStateChange = now
		}
	}
}

func (p *circuitBreakerPolicy) CheckAndGetState(dependency, operation string, now time.Time) CircuitState {
	if !p.enabled {
		return CircuitStateClosed
	}

	circuit, exists := p.get(dependency, operation)
	if !exists {
		return CircuitStateClosed
	}

	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	p.maybeHalfOpenUnsafe(circuit, now)
	return circuit.state
}

// maybeHalfOpenUnsafe moves an open circuit to half-open once the timeout elapsed (caller must hold circuit.mu)
func (p *circuitBreakerPolicy) maybeHalfOpenUnsafe(circuit *circuitState, now time.Time) {
	if circuit.state == CircuitStateOpen && now.Sub(circuit.lastStateChange) >= p.timeout {
		circuit.state = CircuitStateHalfOpen
		circuit.successCount = 0
		circuit.lastStateChange = now
	}
}

func (p *circuitBreakerPolicy) get(dependency, operation string) (*circuitState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	circuit, exists := p.circuits[dependency+":"+operation]
	return circuit, exists
}

func (p *circuitBreakerPolicy) getOrCreate(dependency, operation string, now time.Time) *circuitState {
	if circuit, exists := p.get(dependency, operation); exists {
		return circuit
	}

	key := dependency + ":" + operation
	p.mu.Lock()
	defer p.mu.Unlock()
	circuit, exists := p.circuits[key]
	if !exists {
		circuit = &circuitState{
			state:           CircuitStateClosed,
			lastStateChange: now,
		}
		p.circuits[key] = circuit
	}
	return circuit
}
