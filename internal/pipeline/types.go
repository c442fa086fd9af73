package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DocumentRef points at a stored study document. It is read-only for the pipeline.
type DocumentRef struct {
	ID          string
	DisplayName string
	StoragePath string
	OwnerID     string
}

// UploadOutcome records the result of pushing one document to the external store.
type UploadOutcome struct {
	Document      DocumentRef
	ExternalDocID string
	Succeeded     bool
}

func uploadSucceeded(doc DocumentRef, externalID string) UploadOutcome {
	return UploadOutcome{Document: doc, ExternalDocID: externalID, Succeeded: true}
}

func uploadFailed(doc DocumentRef) UploadOutcome {
	return UploadOutcome{Document: doc}
}

// IndexStatus is the indexing state of an external document.
type IndexStatus int

const (
	IndexPending IndexStatus = iota
	IndexIndexed
	IndexFailed
)

func (s IndexStatus) String() string {
	switch s {
	case IndexIndexed:
		return "indexed"
	case IndexFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Terminal reports whether polling should stop at this status.
func (s IndexStatus) Terminal() bool {
	return s == IndexIndexed || s == IndexFailed
}

// Difficulty is the requested exam difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ExamConfig parameterises exam generation.
type ExamConfig struct {
	NumberOfQuestions int        `validate:"gt=0"`
	Difficulty        Difficulty `validate:"oneof=easy medium hard"`
	SubjectContext    string
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration bounds.
func (c ExamConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExamConfig, err)
	}
	return nil
}

// Thread is an ephemeral conversation context on the AI service.
type Thread struct {
	ID          string
	AssistantID string
	CreatedAt   time.Time
}

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionLongAnswer     QuestionType = "long-answer"
)

// ParseQuestionType normalises raw model output into a known type.
func ParseQuestionType(raw string) (QuestionType, bool) {
	switch QuestionType(strings.ToLower(strings.TrimSpace(raw))) {
	case QuestionMultipleChoice:
		return QuestionMultipleChoice, true
	case QuestionTrueFalse:
		return QuestionTrueFalse, true
	case QuestionShortAnswer:
		return QuestionShortAnswer, true
	case QuestionLongAnswer:
		return QuestionLongAnswer, true
	default:
		return "", false
	}
}

// Question is one generated exam question.
type Question struct {
	Prompt        string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
}

// AnsweredQuestion is a question resubmitted for grading with the user's answer.
type AnsweredQuestion struct {
	Question
	UserAnswer string `json:"userAnswer"`
}

// GradingRecord is the verdict for one answered question, aligned by position.
type GradingRecord struct {
	Verdict     bool   `json:"isCorrect"`
	ModelAnswer string `json:"modelAnswer"`
}

// ChunkType discriminates streamed chat chunks.
type ChunkType string

const (
	ChunkContent  ChunkType = "content"
	ChunkComplete ChunkType = "complete"
	ChunkError    ChunkType = "error"
)

// Chunk is one unit of a streamed chat response.
type Chunk struct {
	Type    ChunkType
	Payload string
}

// ChunkStream yields chunks in arrival order.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}

// DocumentStore is the external document index.
type DocumentStore interface {
	UploadDocument(ctx context.Context, threadID, filename string, content []byte) (string, error)
	DocumentStatus(ctx context.Context, documentID string) (IndexStatus, error)
}

// ThreadService creates and removes conversation threads.
type ThreadService interface {
	CreateThread(ctx context.Context, assistantID string) (Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
}

// MessageSender posts a message to a thread and streams the reply.
type MessageSender interface {
	SendMessage(ctx context.Context, threadID, content string) (ChunkStream, error)
}

// BlobFetcher loads document bytes from storage.
type BlobFetcher interface {
	Fetch(ctx context.Context, storagePath string) ([]byte, error)
}
