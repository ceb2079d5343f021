package utils

import (
	"fmt"
	"math"
	"time"
)

// BackoffKind selects how the delay grows between retry attempts
type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// ParseBackoffKind validates a backoff name from configuration
func ParseBackoffKind(s string) (BackoffKind, error) {
	switch BackoffKind(s) {
	case BackoffConstant, BackoffLinear, BackoffExponential:
		return BackoffKind(s), nil
	case "":
		return BackoffExponential, nil
	default:
		return "", fmt.Errorf("invalid backoff type: %s (must be exponential, linear, or constant)", s)
	}
}

// Backoff computes retry delays
type Backoff struct {
	Kind      BackoffKind
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter is the +/- fraction applied to every delay; 0 disables it.
	Jitter float64
}

// NewBackoff creates a backoff; a zero maxDelay caps delays at 30s.
func NewBackoff(kind BackoffKind, baseDelay, maxDelay time.Duration, jitter float64) Backoff {
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return Backoff{
		Kind:      kind,
		BaseDelay: baseDelay,
		MaxDelay:  maxDelay,
		Jitter:    jitter,
	}
}

// NextDelay returns the delay before retry number attempt (0-indexed)
func (b Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	var delay float64
	switch b.Kind {
	case BackoffConstant:
		delay = float64(b.BaseDelay)
	case BackoffLinear:
		delay = float64(b.BaseDelay) * float64(attempt+1)
	default:
		delay = float64(b.BaseDelay) * math.Pow(2, float64(attempt))
	}

	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	return Jitter(time.Duration(delay), b.Jitter)
}
