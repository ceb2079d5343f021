package policy

import (
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
)

// ErrCircuitOpen is returned by Guard when a dependency's circuit rejects the call
var ErrCircuitOpen = errors.New("circuit open")

// Policy represents a generic policy interface
type Policy interface {
	// Enabled returns whether the policy is enabled
	Enabled() bool
	// Name returns the policy name for identification
	Name() string
}

// RetryPolicy handles retry logic for failed collaborator calls
type RetryPolicy interface {
	Policy
	// ShouldRetry determines if a call should be retried
	ShouldRetry(attempt int, err error) bool
	// GetBackoffDuration calculates the backoff duration for a retry attempt
	GetBackoffDuration(attempt int) time.Duration
	// GetMaxRetries returns the maximum number of retries allowed
	GetMaxRetries() int
}

// CircuitBreakerPolicy tracks failures per dependency and operation
type CircuitBreakerPolicy interface {
	Policy
	// AllowRequest checks if a call should be allowed (circuit not open)
	AllowRequest(dependency, operation string, now time.Time) bool
	// RecordSuccess records a successful call
	RecordSuccess(dependency, operation string, now time.Time)
	// RecordFailure records a failed call
	RecordFailure(dependency, operation string, now time.Time)
	// CheckAndGetState returns the current state, moving open circuits to half-open once the timeout elapsed
	CheckAndGetState(dependency, operation string, now time.Time) CircuitState
}

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"   // Normal operation
	CircuitStateOpen     CircuitState = "open"     // Failing, rejecting calls
	CircuitStateHalfOpen CircuitState = "halfopen" // Testing if the dependency recovered
)

// Manager manages the policies guarding collaborator calls
type Manager struct {
	retry          RetryPolicy
	circuitBreaker CircuitBreakerPolicy
}

// NewPolicyManager creates a new policy manager from the registry configuration
func NewPolicyManager(cfg *config.Registry) *Manager {
	pm := &Manager{}

	if cfg != nil {
		if cfg.Retry != nil && cfg.Retry.Enabled {
			pm.retry = NewRetryPolicyFromConfig(cfg.Retry)
		}
		if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
			pm.circuitBreaker = NewCircuitBreakerPolicyFromConfig(cfg.CircuitBreaker)
		}
	}

	return pm
}

// GetRetry returns the retry policy if enabled
func (pm *Manager) GetRetry() RetryPolicy {
	return pm.retry
}

// GetCircuitBreaker returns the circuit breaker policy if enabled
func (pm *Manager) GetCircuitBreaker() CircuitBreakerPolicy {
	return pm.circuitBreaker
}

// Guard returns a Guard using the manager's policies
func (pm *Manager) Guard() *Guard {
	return NewGuard(pm.retry, pm.circuitBreaker)
}
