// Package retry re-runs request-boundary operations that failed because
// storage was unavailable. Domain errors are returned on the first attempt.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

const (
	defaultAttempts = 3
	defaultBase     = 100 * time.Millisecond
	maxDelay        = 2 * time.Second
)

// Policy bounds the backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// FromConfig builds a Policy from the retry config section.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay}
}

func (p Policy) backoff() goretry.Backoff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBase
	}
	b := goretry.NewExponential(base)
	b = goretry.WithCappedDuration(maxDelay, b)
	b = goretry.WithJitterPercent(20, b)
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}

// Do runs fn, retrying only dependency failures with exponential backoff and jitter.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if pkgerrors.CodeOf(err) == pkgerrors.CodeDependency {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// DoValue is Do for functions returning a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
