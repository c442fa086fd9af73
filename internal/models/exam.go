package models

import (
	"time"

	"gorm.io/datatypes"
)

// Exam lifecycle states.
const (
	ExamStatusGenerated = "generated"
	ExamStatusGraded    = "graded"
)

// ExamQuestion is a stored generated question.
type ExamQuestion struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// ExamResult is the stored verdict for one answered question.
type ExamResult struct {
	UserAnswer  string `json:"userAnswer"`
	IsCorrect   bool   `json:"isCorrect"`
	ModelAnswer string `json:"modelAnswer"`
}

// Exam is a generated exam and, once graded, its results.
type Exam struct {
	ID                string                            `gorm:"primaryKey;size:36" json:"id"`
	UserID            string                            `gorm:"size:64;index;not null" json:"user_id"`
	AssistantID       string                            `gorm:"size:128" json:"assistant_id"`
	Difficulty        string                            `gorm:"size:16" json:"difficulty"`
	NumberOfQuestions int                               `json:"number_of_questions"`
	SubjectContext    string                            `gorm:"type:text" json:"subject_context"`
	Status            string                            `gorm:"size:16;index" json:"status"`
	DocumentIDs       datatypes.JSONSlice[string]       `json:"document_ids"`
	Questions         datatypes.JSONSlice[ExamQuestion] `json:"questions"`
	FailedLines       datatypes.JSONSlice[int]          `json:"failed_lines"`
	Results           datatypes.JSONSlice[ExamResult]   `json:"results"`
	Score             *int                              `json:"score"`
	GradedAt          *time.Time                        `json:"graded_at"`
	CreatedAt         time.Time                         `json:"created_at"`
	UpdatedAt         time.Time                         `json:"updated_at"`
}
