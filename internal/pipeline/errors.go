package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidExamConfig indicates the generation parameters are out of bounds.
	ErrInvalidExamConfig = errors.New("invalid exam config")
	// ErrNoDocumentsUploaded indicates every document upload failed.
	ErrNoDocumentsUploaded = errors.New("no documents were uploaded successfully")
	// ErrIndexingFailed indicates the document store reported an indexing failure.
	ErrIndexingFailed = errors.New("document indexing failed")
	// ErrIndexingTimeout indicates a document was still pending after the poll budget.
	ErrIndexingTimeout = errors.New("document indexing timed out")
	// ErrThreadCreation indicates the conversation thread could not be created.
	ErrThreadCreation = errors.New("thread creation failed")
	// ErrParse indicates a response line could not be parsed.
	ErrParse = errors.New("response parse error")
	// ErrGradingMismatch indicates the grading output does not align with the questions.
	ErrGradingMismatch = errors.New("grading output does not match questions")
	// ErrEmptyExam indicates generation produced no usable questions.
	ErrEmptyExam = errors.New("no questions could be parsed from the response")
	// ErrStreamFailed indicates the chat stream reported an error or ended early.
	ErrStreamFailed = errors.New("chat stream failed")
	// ErrNoQuestions indicates grading was requested for an empty question set.
	ErrNoQuestions = errors.New("no questions to grade")

	errEmptyDocumentID = errors.New("document store returned an empty document id")
	errEmptyThreadID   = errors.New("thread service returned an empty thread id")
)

// IndexingFailedError names the document whose indexing failed.
type IndexingFailedError struct {
	DocumentID string
}

func (e *IndexingFailedError) Error() string {
	return fmt.Sprintf("indexing failed for document %s", e.DocumentID)
}

func (e *IndexingFailedError) Is(target error) bool { return target == ErrIndexingFailed }

// IndexingTimeoutError names the documents still pending after the poll budget.
type IndexingTimeoutError struct {
	DocumentIDs []string
}

func (e *IndexingTimeoutError) Error() string {
	return fmt.Sprintf("indexing timed out for %d document(s): %v", len(e.DocumentIDs), e.DocumentIDs)
}

func (e *IndexingTimeoutError) Is(target error) bool { return target == ErrIndexingTimeout }

// ThreadCreationError wraps the cause of a failed thread creation.
type ThreadCreationError struct {
	AssistantID string
	Err         error
}

func (e *ThreadCreationError) Error() string {
	return fmt.Sprintf("create thread for assistant %s: %v", e.AssistantID, e.Err)
}

func (e *ThreadCreationError) Is(target error) bool { return target == ErrThreadCreation }

func (e *ThreadCreationError) Unwrap() error { return e.Err }

// ParseError describes one response line that could not be parsed. Line is 1-based.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// EmptyExamError carries the line failures of a generation that yielded nothing.
type EmptyExamError struct {
	Failures []*ParseError
}

func (e *EmptyExamError) Error() string {
	return fmt.Sprintf("%s (%d malformed line(s))", ErrEmptyExam.Error(), len(e.Failures))
}

func (e *EmptyExamError) Is(target error) bool { return target == ErrEmptyExam }

// GradingMismatchError reports how many grading lines were expected and received.
type GradingMismatchError struct {
	Expected int
	Got      int
	Line     int
	Reason   string
}

func (e *GradingMismatchError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("grading line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("grading returned %d line(s) for %d question(s)", e.Got, e.Expected)
}

func (e *GradingMismatchError) Is(target error) bool { return target == ErrGradingMismatch }

// StreamError carries the failure reported mid-stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("chat stream failed: %s", e.Message)
}

func (e *StreamError) Is(target error) bool { return target == ErrStreamFailed }
