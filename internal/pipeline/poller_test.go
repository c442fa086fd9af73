package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPollerStopsWhenIndexed(t *testing.T) {
	store := newFakeStore()
	store.statuses["doc"] = []IndexStatus{IndexPending, IndexPending, IndexPending, IndexIndexed}
	poller := NewPoller(store, testPolicy(10), testLogger())

	indexed, err := poller.WaitIndexed(context.Background(), "doc")
	require.NoError(t, err)
	require.True(t, indexed)
	require.Equal(t, 4, store.calls("doc"))
}

func TestPollerTimesOutAfterBudget(t *testing.T) {
	store := newFakeStore()
	store.statuses["doc"] = []IndexStatus{IndexPending}
	poller := NewPoller(store, testPolicy(5), testLogger())

	indexed, err := poller.WaitIndexed(context.Background(), "doc")
	require.NoError(t, err)
	require.False(t, indexed)
	require.Equal(t, 5, store.calls("doc"))
}

func TestPollerStopsOnFailure(t *testing.T) {
	store := newFakeStore()
	store.statuses["doc"] = []IndexStatus{IndexPending, IndexFailed, IndexIndexed}
	poller := NewPoller(store, testPolicy(10), testLogger())

	indexed, err := poller.WaitIndexed(context.Background(), "doc")
	require.False(t, indexed)
	require.ErrorIs(t, err, ErrIndexingFailed)

	var failed *IndexingFailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, "doc", failed.DocumentID)
	require.Equal(t, 2, store.calls("doc"))
}

func TestPollerTreatsQueryErrorsAsPending(t *testing.T) {
	store := newFakeStore()
	store.statusErr["doc"] = errBoom
	poller := NewPoller(store, testPolicy(3), testLogger())

	indexed, err := poller.WaitIndexed(context.Background(), "doc")
	require.NoError(t, err)
	require.False(t, indexed)
	require.Equal(t, 3, store.calls("doc"))
}

func TestPollerHonoursCancellation(t *testing.T) {
	store := newFakeStore()
	store.statuses["doc"] = []IndexStatus{IndexPending}
	poller := NewPoller(store, testPolicy(10), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poller.WaitIndexed(ctx, "doc")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewPollerDefaults(t *testing.T) {
	poller := NewPoller(newFakeStore(), testPolicy(0), testLogger())
	require.Equal(t, DefaultPollAttempts, poller.policy.MaxAttempts)
	require.Equal(t, DefaultPollDelay, poller.policy.Delay)
}
