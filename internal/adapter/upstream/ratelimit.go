package upstream

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"intramind/internal/util"
)

// Limiter throttles calls to a provider. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a token bucket limiter, or nil when rps <= 0.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request can be made or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Policy bundles the retry and timeout settings shared by remote adapters.
type Policy struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Limiter    *Limiter
}

// Do runs fn under the policy: each attempt waits for the limiter, gets
// its own timeout, and has its error classified. Transient failures are
// retried with backoff.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return util.Retry(ctx, p.MaxRetries, p.RetryDelay, func(ctx context.Context) error {
		if err := p.Limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		return ClassifyError(op, fn(attemptCtx))
	})
}
