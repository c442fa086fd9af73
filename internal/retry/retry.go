package retry

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPolicy indicates a policy that cannot perform a single attempt.
var ErrInvalidPolicy = errors.New("retry policy requires at least one attempt")

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with the context error when ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy describes a bounded, fixed-delay retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       Sleeper
}

// Attempt is invoked once per iteration. Returning done=true stops the loop
// successfully; a non-nil error stops it immediately.
type Attempt func(ctx context.Context, attempt int) (done bool, err error)

// Do runs fn until it reports done, returns an error, or the attempt budget is
// spent. Exhausting the budget is not an error: Do returns (false, nil) and the
// caller decides what a timeout means. No delay follows the final attempt.
func (p Policy) Do(ctx context.Context, fn Attempt) (bool, error) {
	if p.MaxAttempts <= 0 {
		return false, ErrInvalidPolicy
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		done, err := fn(ctx, attempt)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return false, err
		}
	}

	return false, nil
}
