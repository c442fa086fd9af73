package pipeline

import (
	"strings"

	"github.com/noah-isme/testem-api/internal/observability"
)

const (
	questionFieldCount = 4
	gradingFieldCount  = 2
)

// GenerationParse holds the questions parsed from generation output and the
// lines that could not be parsed.
type GenerationParse struct {
	Questions []Question
	Failures  []*ParseError
}

// FailedLines returns the 1-based line numbers that failed to parse.
func (p GenerationParse) FailedLines() []int {
	lines := make([]int, 0, len(p.Failures))
	for _, failure := range p.Failures {
		lines = append(lines, failure.Line)
	}
	return lines
}

// ParseQuestions parses one question per non-empty line in the form
// prompt~type~options~correctAnswer. Malformed lines are collected, not fatal.
func ParseQuestions(text string) GenerationParse {
	result := GenerationParse{Questions: []Question{}}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		question, failure := parseQuestionLine(i+1, line)
		if failure != nil {
			observability.ParseFailures().WithLabelValues("generation").Inc()
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Questions = append(result.Questions, question)
	}

	return result
}

func parseQuestionLine(lineNo int, line string) (Question, *ParseError) {
	fields := strings.Split(line, FieldDelimiter)
	if len(fields) != questionFieldCount {
		return Question{}, &ParseError{Line: lineNo, Text: line, Reason: "expected 4 fields separated by '~'"}
	}

	prompt := strings.TrimSpace(fields[0])
	if prompt == "" {
		return Question{}, &ParseError{Line: lineNo, Text: line, Reason: "empty question text"}
	}

	questionType, ok := ParseQuestionType(fields[1])
	if !ok {
		return Question{}, &ParseError{Line: lineNo, Text: line, Reason: "unrecognised question type " + strings.TrimSpace(fields[1])}
	}

	options := []string{}
	if questionType == QuestionMultipleChoice {
		options = splitOptions(fields[2])
	}

	return Question{
		Prompt:        prompt,
		Type:          questionType,
		Options:       options,
		CorrectAnswer: strings.TrimSpace(fields[3]),
	}, nil
}

func splitOptions(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	parts := strings.Split(raw, ",")
	options := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	return options
}

// ParseGrading parses one verdict~modelAnswer line per question, matched by
// position. Any count mismatch or malformed line fails the whole batch.
func ParseGrading(text string, expected int) ([]GradingRecord, error) {
	lines := make([]string, 0, expected)
	for _, raw := range strings.Split(text, "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) != expected {
		observability.ParseFailures().WithLabelValues("grading").Inc()
		return nil, &GradingMismatchError{Expected: expected, Got: len(lines)}
	}

	records := make([]GradingRecord, 0, len(lines))
	for i, line := range lines {
		fields := strings.SplitN(line, FieldDelimiter, gradingFieldCount)
		if len(fields) != gradingFieldCount {
			observability.ParseFailures().WithLabelValues("grading").Inc()
			return nil, &GradingMismatchError{Expected: expected, Got: len(lines), Line: i + 1, Reason: "expected verdict and model answer separated by '~'"}
		}

		records = append(records, GradingRecord{
			Verdict:     strings.EqualFold(strings.TrimSpace(fields[0]), "yes"),
			ModelAnswer: strings.TrimSpace(fields[1]),
		})
	}

	return records, nil
}
