package dto

import "time"

// GenerateExamRequest is the payload for generating a new exam.
type GenerateExamRequest struct {
	DocumentIDs       []string `json:"document_ids" validate:"required,min=1,dive,required"`
	NumberOfQuestions int      `json:"number_of_questions" validate:"required,gt=0,lte=50"`
	Difficulty        string   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Subject           string   `json:"subject" validate:"omitempty,max=500"`
}

// GradeExamRequest carries the user's answers, one per stored question in order.
type GradeExamRequest struct {
	Answers []string `json:"answers" validate:"required,min=1"`
}

// ExamQuestionResponse is one question as returned to clients.
type ExamQuestionResponse struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// ExamResultResponse is the grading verdict for one question.
type ExamResultResponse struct {
	Question    string `json:"question"`
	UserAnswer  string `json:"userAnswer"`
	IsCorrect   bool   `json:"isCorrect"`
	ModelAnswer string `json:"modelAnswer"`
}

// ExamResponse describes a stored exam.
type ExamResponse struct {
	ID                string                 `json:"id"`
	Status            string                 `json:"status"`
	Difficulty        string                 `json:"difficulty"`
	NumberOfQuestions int                    `json:"number_of_questions"`
	DocumentIDs       []string               `json:"document_ids"`
	Questions         []ExamQuestionResponse `json:"questions"`
	FailedLines       []int                  `json:"failed_lines"`
	Results           []ExamResultResponse   `json:"results,omitempty"`
	Score             *int                   `json:"score"`
	GradedAt          *time.Time             `json:"graded_at"`
	CreatedAt         time.Time              `json:"created_at"`
}

// GradeExamResponse summarises a grading run.
type GradeExamResponse struct {
	ExamID  string               `json:"exam_id"`
	Score   int                  `json:"score"`
	Correct int                  `json:"correct"`
	Total   int                  `json:"total"`
	Results []ExamResultResponse `json:"results"`
}

// AssistantResponse reports the caller's assistant.
type AssistantResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}
