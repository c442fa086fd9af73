package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/models"
)

// DocumentFilter describes pagination for document listings.
type DocumentFilter struct {
	Page     int
	PageSize int
}

// DocumentRepository persists study document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	FindByIDs(ctx context.Context, ids []string) ([]models.Document, error)
	ListByOwner(ctx context.Context, ownerID string, filter DocumentFilter) ([]models.Document, int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository constructs a document repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

// FindByIDs returns the documents that exist among ids. Missing ids are skipped.
func (r *documentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return []models.Document{}, nil
	}

	var documents []models.Document
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *documentRepository) ListByOwner(ctx context.Context, ownerID string, filter DocumentFilter) ([]models.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var documents []models.Document
	if err := query.Order("created_at DESC").Find(&documents).Error; err != nil {
		return nil, 0, err
	}
	return documents, total, nil
}
