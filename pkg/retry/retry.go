package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation. Zero fields fall back to the package
// defaults; a zero MaxElapsedTime means no overall deadline.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// WithDefaults returns the policy with unset fields filled in.
func (p Policy) WithDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 1 * time.Second
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// OnRetry is invoked after each failed attempt that will be retried.
type OnRetry func(attempt int, err error, nextDelay time.Duration)

// Do runs fn until it succeeds, the policy is exhausted, or ctx ends.
// Errors wrapped with Permanent stop the retries immediately.
func Do(ctx context.Context, policy Policy, fn func() error, onRetry OnRetry) error {
	p := policy.WithDefaults()

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if onRetry != nil && attempt < p.MaxAttempts && !isPermanent(err) {
			onRetry(attempt, err, nextDelay(attempt, p))
		}
		return err
	}

	return backoff.Retry(operation, newBackOff(ctx, p))
}

// Permanent marks err as not worth retrying, for failures that cannot
// succeed on a later attempt such as malformed payloads.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
