package policy

import (
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// retryPolicy implements RetryPolicy
type retryPolicy struct {
	enabled    bool
	maxRetries int
	backoff    utils.Backoff
}

// NewRetryPolicyFromConfig creates a retry policy from config
func NewRetryPolicyFromConfig(cfg *config.RetryPolicy) RetryPolicy {
	p := NewRetryPolicy(cfg.Enabled, cfg.MaxRetries, cfg.Backoff, cfg.BaseMs).(*retryPolicy)
	if cfg.MaxMs > 0 {
		p.backoff.MaxDelay = time.Duration(cfg.MaxMs) * time.Millisecond
	}
	p.backoff.Jitter = cfg.Jitter
	return p
}

// NewRetryPolicy creates a retry policy with explicit parameters.
// An unknown backoff kind falls back to exponential.
func NewRetryPolicy(enabled bool, maxRetries int, backoff string, baseMs int) RetryPolicy {
	kind, err := utils.ParseBackoffKind(backoff)
	if err != nil {
		kind = utils.BackoffExponential
	}
	return &retryPolicy{
		enabled:    enabled,
		maxRetries: maxRetries,
		backoff:    utils.NewBackoff(kind, time.Duration(baseMs)*time.Millisecond, 0, 0),
	}
}

func (p *retryPolicy) Enabled() bool {
	return p.enabled
}

func (p *retryPolicy) Name() string {
	return "retry"
}

func (p *retryPolicy) ShouldRetry(attempt int, err error) bool {
	if !p.enabled {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	// Open circuits and cancelled contexts are not transient
	return err != nil && !isPermanent(err)
}

// GetBackoffDuration returns the delay before retry number attempt (1-indexed)
func (p *retryPolicy) GetBackoffDuration(attempt int) time.Duration {
	if !p.enabled || attempt <= 0 {
		return 0
	}
	return p.backoff.NextDelay(attempt - 1)
}

func (p *retryPolicy) GetMaxRetries() int {
	return p.maxRetries
}
