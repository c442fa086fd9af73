package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/models"
)

func setupTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

func TestExamRepositoryRoundTripsJSONColumns(t *testing.T) {
	db := setupTestDB(t, &models.Exam{})
	repo := NewExamRepository(db)
	ctx := context.Background()

	exam := models.Exam{
		ID:          "exam-1",
		UserID:      "user-1",
		Status:      models.ExamStatusGenerated,
		Difficulty:  "medium",
		DocumentIDs: []string{"doc-1", "doc-2"},
		Questions: []models.ExamQuestion{
			{Question: "2+2?", Type: "multiple-choice", Options: []string{"3", "4"}, CorrectAnswer: "4"},
		},
		FailedLines: []int{3},
	}
	require.NoError(t, repo.Create(ctx, &exam))

	stored, err := repo.FindByID(ctx, "exam-1")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-1", "doc-2"}, []string(stored.DocumentIDs))
	require.Equal(t, "4", stored.Questions[0].CorrectAnswer)
	require.Equal(t, []int{3}, []int(stored.FailedLines))
	require.Nil(t, stored.Score)
}

func TestExamRepositorySaveResults(t *testing.T) {
	db := setupTestDB(t, &models.Exam{})
	repo := NewExamRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Exam{ID: "exam-1", UserID: "user-1", Status: models.ExamStatusGenerated}))

	score := 50
	gradedAt := time.Now().UTC()
	exam := &models.Exam{
		ID:       "exam-1",
		Status:   models.ExamStatusGraded,
		Results:  []models.ExamResult{{UserAnswer: "4", IsCorrect: true, ModelAnswer: "4"}, {UserAnswer: "x", ModelAnswer: "y"}},
		Score:    &score,
		GradedAt: &gradedAt,
	}
	require.NoError(t, repo.SaveResults(ctx, exam))

	stored, err := repo.FindByID(ctx, "exam-1")
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusGraded, stored.Status)
	require.Len(t, stored.Results, 2)
	require.NotNil(t, stored.Score)
	require.Equal(t, 50, *stored.Score)
}

func TestExamRepositorySaveResultsMissingExam(t *testing.T) {
	db := setupTestDB(t, &models.Exam{})
	repo := NewExamRepository(db)

	err := repo.SaveResults(context.Background(), &models.Exam{ID: "missing", Status: models.ExamStatusGraded})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDocumentRepositoryFindByIDsSkipsMissing(t *testing.T) {
	db := setupTestDB(t, &models.Document{})
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Document{ID: "doc-1", OwnerID: "user-1", StoragePath: "a"}))
	require.NoError(t, repo.Create(ctx, &models.Document{ID: "doc-2", OwnerID: "user-2", StoragePath: "b"}))

	docs, err := repo.FindByIDs(ctx, []string{"doc-1", "doc-2", "doc-3"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDocumentRepositoryListByOwnerPaginates(t *testing.T) {
	db := setupTestDB(t, &models.Document{})
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Document{ID: fmt.Sprintf("doc-%d", i), OwnerID: "user-1", StoragePath: "p"}))
	}
	require.NoError(t, repo.Create(ctx, &models.Document{ID: "other", OwnerID: "user-2", StoragePath: "p"}))

	docs, total, err := repo.ListByOwner(ctx, "user-1", DocumentFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, docs, 1)
}

func TestAssistantRepositoryFindByUser(t *testing.T) {
	db := setupTestDB(t, &models.Assistant{})
	repo := NewAssistantRepository(db)
	ctx := context.Background()

	_, err := repo.FindByUser(ctx, "user-1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Create(ctx, &models.Assistant{ID: "asst-1", UserID: "user-1"}))
	require.Error(t, repo.Create(ctx, &models.Assistant{ID: "asst-2", UserID: "user-1"}))

	assistant, err := repo.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "asst-1", assistant.ID)
}
