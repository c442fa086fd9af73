package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/testem-api/internal/reqctx"
)

const defaultUploadConcurrency = 4

// CoordinatorConfig tunes the upload/index fan-out.
type CoordinatorConfig struct {
	UploadConcurrency int
	// RequireAllIndexed escalates indexing timeouts instead of tolerating them.
	RequireAllIndexed bool
}

// IngestResult summarises one upload/index pass.
type IngestResult struct {
	Uploaded []UploadOutcome
	Failed   []UploadOutcome
	Indexed  []string
	TimedOut []string
}

// Coordinator fans uploads and indexing polls out across a document batch.
type Coordinator struct {
	blobs    BlobFetcher
	uploader *Uploader
	poller   *Poller
	cfg      CoordinatorConfig
	logger   zerolog.Logger
}

// NewCoordinator wires the coordinator collaborators.
func NewCoordinator(blobs BlobFetcher, uploader *Uploader, poller *Poller, cfg CoordinatorConfig, logger zerolog.Logger) *Coordinator {
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultUploadConcurrency
	}
	return &Coordinator{
		blobs:    blobs,
		uploader: uploader,
		poller:   poller,
		cfg:      cfg,
		logger:   logger.With().Str("component", "ingest_coordinator").Logger(),
	}
}

// Ingest uploads every document into the thread and waits for all indexing
// polls to settle. It fails with ErrNoDocumentsUploaded when no upload
// succeeds, and with *IndexingFailedError as soon as any document fails.
func (c *Coordinator) Ingest(ctx context.Context, threadID string, docs []DocumentRef) (IngestResult, error) {
	outcomes := c.uploadAll(ctx, threadID, docs)

	result := IngestResult{}
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			result.Uploaded = append(result.Uploaded, outcome)
		} else {
			result.Failed = append(result.Failed, outcome)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if len(result.Uploaded) == 0 {
		reqctx.Logger(ctx, c.logger).Error().Str("thread_id", threadID).Int("documents", len(docs)).Msg("no documents uploaded")
		return result, ErrNoDocumentsUploaded
	}

	reqctx.Logger(ctx, c.logger).Info().
		Str("thread_id", threadID).
		Int("uploaded", len(result.Uploaded)).
		Int("failed", len(result.Failed)).
		Msg("uploads settled, waiting for indexing")

	indexed, err := c.pollAll(ctx, result.Uploaded)
	if err != nil {
		return result, err
	}

	for i, outcome := range result.Uploaded {
		if indexed[i] {
			result.Indexed = append(result.Indexed, outcome.ExternalDocID)
		} else {
			result.TimedOut = append(result.TimedOut, outcome.ExternalDocID)
		}
	}

	if len(result.TimedOut) > 0 {
		if c.cfg.RequireAllIndexed {
			return result, &IndexingTimeoutError{DocumentIDs: result.TimedOut}
		}
		reqctx.Logger(ctx, c.logger).Warn().
			Str("thread_id", threadID).
			Strs("document_ids", result.TimedOut).
			Msg("continuing with documents still pending indexing")
	}

	return result, nil
}

func (c *Coordinator) uploadAll(ctx context.Context, threadID string, docs []DocumentRef) []UploadOutcome {
	outcomes := make([]UploadOutcome, len(docs))

	var g errgroup.Group
	g.SetLimit(c.cfg.UploadConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = c.uploadOne(ctx, threadID, doc)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Coordinator) uploadOne(ctx context.Context, threadID string, doc DocumentRef) UploadOutcome {
	if ctx.Err() != nil {
		return uploadFailed(doc)
	}

	content, err := c.blobs.Fetch(ctx, doc.StoragePath)
	if err != nil {
		reqctx.Logger(ctx, c.logger).Warn().
			Err(err).
			Str("document_id", doc.ID).
			Str("storage_path", doc.StoragePath).
			Msg("failed to fetch document content")
		return uploadFailed(doc)
	}

	return c.uploader.Upload(ctx, threadID, doc, content)
}

// pollAll returns, per uploaded document, whether it finished indexing.
// errgroup.Wait guarantees no poll is still in flight when it returns.
func (c *Coordinator) pollAll(ctx context.Context, uploaded []UploadOutcome) ([]bool, error) {
	indexed := make([]bool, len(uploaded))

	g, gctx := errgroup.WithContext(ctx)
	for i, outcome := range uploaded {
		g.Go(func() error {
			ok, err := c.poller.WaitIndexed(gctx, outcome.ExternalDocID)
			if err != nil {
				return err
			}
			indexed[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return indexed, nil
}
