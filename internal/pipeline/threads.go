package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/testem-api/internal/observability"
	"github.com/noah-isme/testem-api/internal/reqctx"
)

const defaultDeleteTimeout = 15 * time.Second

// ThreadManager owns the create/use/delete lifecycle of conversation threads.
type ThreadManager struct {
	threads       ThreadService
	deleteTimeout time.Duration
	logger        zerolog.Logger
}

// NewThreadManager constructs a thread manager.
func NewThreadManager(threads ThreadService, deleteTimeout time.Duration, logger zerolog.Logger) *ThreadManager {
	if deleteTimeout <= 0 {
		deleteTimeout = defaultDeleteTimeout
	}
	return &ThreadManager{
		threads:       threads,
		deleteTimeout: deleteTimeout,
		logger:        logger.With().Str("component", "thread_manager").Logger(),
	}
}

// Create opens a new thread for the assistant. Failures are not retried.
func (m *ThreadManager) Create(ctx context.Context, assistantID string) (Thread, error) {
	thread, err := m.threads.CreateThread(ctx, assistantID)
	if err != nil {
		return Thread{}, &ThreadCreationError{AssistantID: assistantID, Err: err}
	}
	if thread.ID == "" {
		return Thread{}, &ThreadCreationError{AssistantID: assistantID, Err: errEmptyThreadID}
	}
	if thread.AssistantID == "" {
		thread.AssistantID = assistantID
	}

	reqctx.Logger(ctx, m.logger).Info().Str("thread_id", thread.ID).Str("assistant_id", assistantID).Msg("thread created")
	return thread, nil
}

// Delete removes the thread. It runs detached from caller cancellation and
// only logs failures.
func (m *ThreadManager) Delete(ctx context.Context, threadID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deleteTimeout)
	defer cancel()

	if err := m.threads.DeleteThread(ctx, threadID); err != nil {
		observability.ThreadDeletions().WithLabelValues("failed").Inc()
		reqctx.Logger(ctx, m.logger).Error().Err(err).Str("thread_id", threadID).Msg("failed to delete thread")
		return
	}

	observability.ThreadDeletions().WithLabelValues("deleted").Inc()
	reqctx.Logger(ctx, m.logger).Info().Str("thread_id", threadID).Msg("thread deleted")
}

// WithThread creates a thread, runs fn with it and deletes it on every exit
// path, including panics.
func (m *ThreadManager) WithThread(ctx context.Context, assistantID string, fn func(ctx context.Context, thread Thread) error) error {
	thread, err := m.Create(ctx, assistantID)
	if err != nil {
		return err
	}
	defer m.Delete(ctx, thread.ID)

	return fn(ctx, thread)
}
