package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/models"
)

// ExamRepository persists generated exams and their grading results.
type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	SaveResults(ctx context.Context, exam *models.Exam) error
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs an exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

// SaveResults writes the grading columns of exam.
func (r *examRepository) SaveResults(ctx context.Context, exam *models.Exam) error {
	result := r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", exam.ID).
		Updates(map[string]interface{}{
			"status":    exam.Status,
			"results":   exam.Results,
			"score":     exam.Score,
			"graded_at": exam.GradedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
