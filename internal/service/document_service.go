package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/testem-api/internal/dto"
	"github.com/noah-isme/testem-api/internal/models"
	"github.com/noah-isme/testem-api/internal/observability"
	"github.com/noah-isme/testem-api/internal/repository"
	"github.com/noah-isme/testem-api/pkg/cloudinary"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrFileRequired indicates the request carried no file.
	ErrFileRequired = errors.New("file is required")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (cloudinary.StoredFile, error)
}

// DocumentService stores study documents and lists them per owner.
type DocumentService interface {
	Upload(ctx context.Context, userID string, file *multipart.FileHeader) (dto.DocumentResponse, error)
	List(ctx context.Context, userID string, page, pageSize int) (dto.DocumentListResponse, error)
}

type documentService struct {
	storage FileStorage
	repo    repository.DocumentRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewDocumentService constructs a document service.
func NewDocumentService(storage FileStorage, repo repository.DocumentRepository, maxSizeMB int, logger zerolog.Logger) DocumentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &documentService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "document_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/testem-api/internal/service/document"),
	}
}

func (s *documentService) Upload(ctx context.Context, userID string, file *multipart.FileHeader) (dto.DocumentResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.DocumentResponse{}, ErrMissingUser
	}

	ctx, span := s.tracer.Start(ctx, "documents.upload")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.DocumentResponse{}, ErrFileRequired
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.DocumentResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.DocumentResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.DocumentResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.DocumentResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType := normalizeDocumentMime(detected.String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !isAllowedDocumentType(fileType) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.DocumentResponse{}, ErrUploadTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := sanitizeFileName(file.Filename, detected.Extension())

	stored, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.DocumentResponse{}, err
	}

	record := models.Document{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		FileName:    name,
		StoragePath: stored.SecureURL,
		URL:         stored.SecureURL,
		MimeType:    fileType,
		SizeBytes:   int64(buf.Len()),
		Checksum:    hex.EncodeToString(checksum[:]),
	}
	if record.StoragePath == "" {
		record.StoragePath = stored.PublicID
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.DocumentResponse{}, fmt.Errorf("store document: %w", err)
	}

	observability.UploadRequests().WithLabelValues(fileType).Inc()
	span.SetStatus(codes.Ok, "stored")

	return toDocumentResponse(record), nil
}

func (s *documentService) List(ctx context.Context, userID string, page, pageSize int) (dto.DocumentListResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.DocumentListResponse{}, ErrMissingUser
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	documents, total, err := s.repo.ListByOwner(ctx, userID, repository.DocumentFilter{Page: page, PageSize: pageSize})
	if err != nil {
		return dto.DocumentListResponse{}, err
	}

	items := make([]dto.DocumentResponse, 0, len(documents))
	for _, doc := range documents {
		items = append(items, toDocumentResponse(doc))
	}

	return dto.DocumentListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
		},
	}, nil
}

func toDocumentResponse(doc models.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:        doc.ID,
		FileName:  doc.FileName,
		URL:       doc.URL,
		MimeType:  doc.MimeType,
		SizeBytes: doc.SizeBytes,
		Checksum:  doc.Checksum,
		CreatedAt: doc.CreatedAt,
	}
}

func sanitizeFileName(name, fallbackExt string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("document-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = fallbackExt
	}
	return base + ext
}

func normalizeDocumentMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	return lower
}

func isAllowedDocumentType(m string) bool {
	switch m {
	case "application/pdf",
		"text/plain",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return true
	default:
		return false
	}
}
