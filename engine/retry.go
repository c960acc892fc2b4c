package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/agentcore/runtime/errs"
)

// RetrySchedule is the exponential-backoff-with-jitter schedule applied to
// retryable transport errors (§7: "transport errors retried per a
// declarative retry schedule... only if the transport marks them
// retryable"). This is hand-rolled rather than pulled from a third-party
// backoff library: the schedule is a handful of lines of core control flow
// that the rest of the loop needs to reason about directly (it must know
// when retries are exhausted to decide between another attempt and
// surfacing llm_transport_error), so introducing a library dependency here
// would buy little over a direct implementation.
type RetrySchedule struct {
	// MaxAttempts is the total number of attempts, including the first
	// (non-retry) one. Zero means the engine's default applies.
	MaxAttempts int `yaml:"max_attempts"`
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxDelay caps the computed delay before jitter is applied.
	MaxDelay time.Duration `yaml:"max_delay"`
}

func (r RetrySchedule) withDefaults() RetrySchedule {
	out := r
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 4
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = 250 * time.Millisecond
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 8 * time.Second
	}
	return out
}

// delay returns the backoff duration before attempt number n (1-indexed;
// n==1 is the delay before the first retry, i.e. after attempt 1 failed).
// Full jitter: a uniform random value in [0, cappedExponentialDelay).
func (r RetrySchedule) delay(n int) time.Duration {
	capped := r.BaseDelay << uint(n-1)
	if capped <= 0 || capped > r.MaxDelay {
		capped = r.MaxDelay
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capped)))
}

// withRetry runs fn up to r.MaxAttempts times, retrying only when fn returns
// an error whose errs.Error.Retryable is true, sleeping the schedule's
// backoff delay between attempts, and returning as soon as ctx is canceled.
func withRetry[T any](ctx context.Context, r RetrySchedule, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		e, ok := err.(*errs.Error)
		if !ok || !e.Retryable || attempt == r.MaxAttempts {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
	return zero, lastErr
}
