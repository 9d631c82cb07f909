package admission

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/mohitkumar/dagforge/logger"
	"go.uber.org/zap"
)

const DEFAULT_MAX_ATTEMPTS int = 5
const DEFAULT_RETRY_DELAY = 10 * time.Second

// RetryPolicy runs an operation up to MaxAttempts times, waiting Delay
// between attempts, for as long as Retryable accepts the error.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
	timer       backoff.Timer
}

func NewRetryPolicy(maxAttempts int, delay time.Duration, retryable func(error) bool) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, Delay: delay, Retryable: retryable}
}

// WithTimer returns a copy of the policy that waits on t instead of the
// wall clock.
func (p RetryPolicy) WithTimer(t backoff.Timer) RetryPolicy {
	p.timer = t
	return p
}

func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)), ctx)
	attempt := 0
	return backoff.RetryNotifyWithTimer(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		logger.Debug("retrying", zap.Int("attempt", attempt), zap.Int("maxAttempts", attempts), zap.Duration("wait", next), zap.Error(err))
	}, p.timer)
}
