package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// Guard runs collaborator calls under a circuit breaker and a retry policy.
// Either policy may be nil.
type Guard struct {
	retry   RetryPolicy
	breaker CircuitBreakerPolicy
	now     func() time.Time
}

// NewGuard creates a guard from optional policies
func NewGuard(retry RetryPolicy, breaker CircuitBreakerPolicy) *Guard {
	return &Guard{retry: retry, breaker: breaker, now: time.Now}
}

// Do calls fn until it succeeds, the retry policy gives up, the circuit opens or ctx ends.
func (g *Guard) Do(ctx context.Context, dependency, operation string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if g.breaker != nil && !g.breaker.AllowRequest(dependency, operation, g.now()) {
			return fmt.Errorf("%s %s: %w", dependency, operation, ErrCircuitOpen)
		}

		err := fn(ctx)
		if err == nil {
			if g.breaker != nil {
				g.breaker.RecordSuccess(dependency, operation, g.now())
			}
			return nil
		}
		if g.breaker != nil && !isPermanent(err) {
			g.breaker.RecordFailure(dependency, operation, g.now())
		}

		if g.retry == nil || !g.retry.ShouldRetry(attempt, err) {
			return err
		}
		if sleepErr := utils.SleepContext(ctx, g.retry.GetBackoffDuration(attempt+1)); sleepErr != nil {
			return err
		}
	}
}

// isPermanent reports errors a retry cannot fix
func isPermanent(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled)
}
