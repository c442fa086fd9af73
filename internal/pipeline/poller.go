package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/testem-api/internal/observability"
	"github.com/noah-isme/testem-api/internal/reqctx"
	"github.com/noah-isme/testem-api/internal/retry"
)

const (
	// DefaultPollAttempts is the status query budget per document.
	DefaultPollAttempts = 50
	// DefaultPollDelay is the pause between status queries.
	DefaultPollDelay = time.Second
)

// Poller waits for an external document to finish indexing.
type Poller struct {
	store  DocumentStore
	policy retry.Policy
	logger zerolog.Logger
}

// NewPoller constructs a poller. A zero policy falls back to the default budget and delay.
func NewPoller(store DocumentStore, policy retry.Policy, logger zerolog.Logger) *Poller {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPollAttempts
		if policy.Delay <= 0 {
			policy.Delay = DefaultPollDelay
		}
	}
	return &Poller{
		store:  store,
		policy: policy,
		logger: logger.With().Str("component", "indexing_poller").Logger(),
	}
}

// WaitIndexed polls until the document is indexed (true), the budget runs out
// (false, nil) or the store reports a failure (*IndexingFailedError).
// Query errors count as a pending attempt; only context errors abort early.
func (p *Poller) WaitIndexed(ctx context.Context, documentID string) (bool, error) {
	attempts := 0
	indexed, err := p.policy.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		attempts = attempt
		status, err := p.store.DocumentStatus(ctx, documentID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			reqctx.Logger(ctx, p.logger).Warn().
				Err(err).
				Str("document_id", documentID).
				Int("attempt", attempt).
				Msg("indexing status query failed")
			return false, nil
		}

		switch status {
		case IndexIndexed:
			return true, nil
		case IndexFailed:
			return false, &IndexingFailedError{DocumentID: documentID}
		default:
			return false, nil
		}
	})
	observability.IndexPollAttempts().Observe(float64(attempts))

	switch {
	case err != nil && errors.Is(err, ErrIndexingFailed):
		observability.IndexPolls().WithLabelValues("failed").Inc()
		reqctx.Logger(ctx, p.logger).Error().Str("document_id", documentID).Int("attempts", attempts).Msg("document indexing failed")
		return false, err
	case err != nil:
		return false, err
	case !indexed:
		observability.IndexPolls().WithLabelValues("timeout").Inc()
		reqctx.Logger(ctx, p.logger).Warn().Str("document_id", documentID).Int("attempts", attempts).Msg("timed out waiting for document indexing")
		return false, nil
	}

	observability.IndexPolls().WithLabelValues("indexed").Inc()
	return true, nil
}
