package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/models"
)

// AssistantRepository stores the user to assistant mapping.
type AssistantRepository interface {
	FindByUser(ctx context.Context, userID string) (*models.Assistant, error)
	Create(ctx context.Context, assistant *models.Assistant) error
}

type assistantRepository struct {
	db *gorm.DB
}

// NewAssistantRepository constructs an assistant repository.
func NewAssistantRepository(db *gorm.DB) AssistantRepository {
	return &assistantRepository{db: db}
}

// FindByUser returns gorm.ErrRecordNotFound when the user has no assistant.
func (r *assistantRepository) FindByUser(ctx context.Context, userID string) (*models.Assistant, error) {
	var assistant models.Assistant
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&assistant).Error; err != nil {
		return nil, err
	}
	return &assistant, nil
}

func (r *assistantRepository) Create(ctx context.Context, assistant *models.Assistant) error {
	return r.db.WithContext(ctx).Create(assistant).Error
}
