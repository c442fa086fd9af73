package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/testem-api/internal/observability"
	"github.com/noah-isme/testem-api/internal/reqctx"
)

// GenerateInput is one exam generation request.
type GenerateInput struct {
	AssistantID string
	Documents   []DocumentRef
	Config      ExamConfig
}

// GenerateResult is the typed outcome of a generation run.
type GenerateResult struct {
	Questions []Question
	Failures  []*ParseError
	Ingest    IngestResult
}

// GradeInput is one grading request.
type GradeInput struct {
	AssistantID string
	Documents   []DocumentRef
	Questions   []AnsweredQuestion
}

// GradeResult is the typed outcome of a grading run, aligned with the input questions.
type GradeResult struct {
	Records []GradingRecord
	Ingest  IngestResult
}

// Pipeline runs exam generation and grading against a fresh thread per call.
type Pipeline struct {
	threads     *ThreadManager
	coordinator *Coordinator
	generator   MessageSender
	grader      MessageSender
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// New constructs the pipeline. A nil grader falls back to the generator.
func New(threads *ThreadManager, coordinator *Coordinator, generator MessageSender, grader MessageSender, logger zerolog.Logger) *Pipeline {
	if grader == nil {
		grader = generator
	}
	return &Pipeline{
		threads:     threads,
		coordinator: coordinator,
		generator:   generator,
		grader:      grader,
		logger:      logger.With().Str("component", "exam_pipeline").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/testem-api/internal/pipeline"),
	}
}

// Generate uploads the documents into a new thread, asks for an exam and
// parses the reply. Malformed lines are reported in the result.
func (p *Pipeline) Generate(ctx context.Context, input GenerateInput) (result GenerateResult, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(
		attribute.String("pipeline.assistant_id", input.AssistantID),
		attribute.Int("pipeline.documents", len(input.Documents)),
		attribute.Int("pipeline.questions_requested", input.Config.NumberOfQuestions),
	))
	defer span.End()
	defer p.observe(ctx, "generate", time.Now(), &err, span)

	if err := input.Config.Validate(); err != nil {
		return GenerateResult{}, err
	}

	err = p.threads.WithThread(ctx, input.AssistantID, func(ctx context.Context, thread Thread) error {
		ingest, err := p.coordinator.Ingest(ctx, thread.ID, input.Documents)
		result.Ingest = ingest
		if err != nil {
			return err
		}

		text, err := p.converse(ctx, p.generator, thread.ID, BuildGenerationPrompt(input.Config))
		if err != nil {
			return err
		}

		parsed := ParseQuestions(text)
		result.Questions = parsed.Questions
		result.Failures = parsed.Failures
		if len(parsed.Failures) > 0 {
			reqctx.Logger(ctx, p.logger).Warn().
				Str("thread_id", thread.ID).
				Ints("lines", parsed.FailedLines()).
				Msg("skipped malformed question lines")
		}
		if len(parsed.Questions) == 0 {
			return &EmptyExamError{Failures: parsed.Failures}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	span.SetAttributes(
		attribute.Int("pipeline.questions_parsed", len(result.Questions)),
		attribute.Int("pipeline.lines_failed", len(result.Failures)),
	)
	return result, nil
}

// Grade grades the answered questions in a new thread. The verdicts are
// returned in input order.
func (p *Pipeline) Grade(ctx context.Context, input GradeInput) (result GradeResult, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.grade", trace.WithAttributes(
		attribute.String("pipeline.assistant_id", input.AssistantID),
		attribute.Int("pipeline.documents", len(input.Documents)),
		attribute.Int("pipeline.questions", len(input.Questions)),
	))
	defer span.End()
	defer p.observe(ctx, "grade", time.Now(), &err, span)

	if len(input.Questions) == 0 {
		return GradeResult{}, ErrNoQuestions
	}

	err = p.threads.WithThread(ctx, input.AssistantID, func(ctx context.Context, thread Thread) error {
		ingest, err := p.coordinator.Ingest(ctx, thread.ID, input.Documents)
		result.Ingest = ingest
		if err != nil {
			return err
		}

		text, err := p.converse(ctx, p.grader, thread.ID, BuildGradingPrompt(input.Questions))
		if err != nil {
			return err
		}

		records, err := ParseGrading(text, len(input.Questions))
		if err != nil {
			return err
		}
		result.Records = records
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func (p *Pipeline) converse(ctx context.Context, sender MessageSender, threadID, prompt string) (string, error) {
	stream, err := sender.SendMessage(ctx, threadID, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: send message: %w", ErrStreamFailed, err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			reqctx.Logger(ctx, p.logger).Debug().Err(err).Str("thread_id", threadID).Msg("failed to close chat stream")
		}
	}()

	return Aggregate(ctx, stream)
}

func (p *Pipeline) observe(ctx context.Context, operation string, start time.Time, errp *error, span trace.Span) {
	outcome := "success"
	if err := *errp; err != nil {
		outcome = errorOutcome(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		reqctx.Logger(ctx, p.logger).Error().Err(err).Str("operation", operation).Str("outcome", outcome).Msg("exam pipeline run failed")
	} else {
		span.SetStatus(codes.Ok, "completed")
	}
	observability.PipelineDuration().WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func errorOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrInvalidExamConfig):
		return "invalid_config"
	case errors.Is(err, ErrNoDocumentsUploaded):
		return "no_documents"
	case errors.Is(err, ErrIndexingFailed):
		return "indexing_failed"
	case errors.Is(err, ErrIndexingTimeout):
		return "indexing_timeout"
	case errors.Is(err, ErrThreadCreation):
		return "thread_creation_failed"
	case errors.Is(err, ErrStreamFailed):
		return "stream_failed"
	case errors.Is(err, ErrEmptyExam):
		return "empty_exam"
	case errors.Is(err, ErrGradingMismatch):
		return "grading_mismatch"
	default:
		return "error"
	}
}
