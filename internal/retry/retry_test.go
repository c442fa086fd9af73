package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestPolicyStopsWhenDone(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 5, Delay: time.Second, Sleep: noSleep}

	done, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return attempt == 3, nil
	})
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 3, calls)
}

func TestPolicyExhaustsWithoutError(t *testing.T) {
	calls := 0
	sleeps := 0
	policy := Policy{MaxAttempts: 4, Delay: time.Millisecond, Sleep: func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}}

	done, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 4, calls)
	require.Equal(t, 3, sleeps)
}

func TestPolicyFailsFast(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	policy := Policy{MaxAttempts: 10, Sleep: noSleep}

	_, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		if attempt == 2 {
			return false, boom
		}
		return false, nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestPolicyRejectsZeroAttempts(t *testing.T) {
	_, err := Policy{}.Do(context.Background(), func(context.Context, int) (bool, error) { return true, nil })
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPolicyStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Policy{MaxAttempts: 3, Sleep: noSleep}.Do(ctx, func(context.Context, int) (bool, error) {
		calls++
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}
