package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/testem-api/internal/observability"
	"github.com/noah-isme/testem-api/internal/reqctx"
)

const defaultDocumentName = "unnamed_document.pdf"

// Uploader pushes single documents into a thread's document store.
type Uploader struct {
	store  DocumentStore
	logger zerolog.Logger
}

// NewUploader constructs an uploader backed by the given store.
func NewUploader(store DocumentStore, logger zerolog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		logger: logger.With().Str("component", "document_uploader").Logger(),
	}
}

// Upload sends content to the thread-scoped store. Failures are logged and
// reported through the outcome, never as an error.
func (u *Uploader) Upload(ctx context.Context, threadID string, doc DocumentRef, content []byte) UploadOutcome {
	filename := documentFilename(doc)

	externalID, err := u.store.UploadDocument(ctx, threadID, filename, content)
	if err == nil && strings.TrimSpace(externalID) == "" {
		err = errEmptyDocumentID
	}
	if err != nil {
		observability.DocumentUploads().WithLabelValues("failed").Inc()
		reqctx.Logger(ctx, u.logger).Warn().
			Err(err).
			Str("thread_id", threadID).
			Str("document_id", doc.ID).
			Str("filename", filename).
			Msg("document upload failed")
		return uploadFailed(doc)
	}

	observability.DocumentUploads().WithLabelValues("uploaded").Inc()
	reqctx.Logger(ctx, u.logger).Info().
		Str("thread_id", threadID).
		Str("document_id", doc.ID).
		Str("external_document_id", externalID).
		Msg("document uploaded")

	return uploadSucceeded(doc, externalID)
}

func documentFilename(doc DocumentRef) string {
	name := strings.TrimSpace(doc.DisplayName)
	if name == "" {
		return defaultDocumentName
	}
	return name
}
