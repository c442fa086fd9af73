package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "testem",
		Subsystem: "ai",
		Name:      "stream_duration_seconds",
		Help:      "Duration of streamed chat completions",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "testem",
		Subsystem: "ai",
		Name:      "stream_failures_total",
		Help:      "Number of failed chat completion streams",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float32
	SystemPrompt string
	Logger       zerolog.Logger
}

// OpenAIChat streams chat completions from the OpenAI API.
type OpenAIChat struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIChat builds a new chat client using the provided configuration.
func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	tracer := otel.Tracer("github.com/noah-isme/testem-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIChat{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_chat").Logger(),
	}, nil
}

// Stream sends prompt as a single user turn and returns the delta stream.
func (c *OpenAIChat) Stream(parent context.Context, prompt string) (*ChatStream, error) {
	ctx, span := c.tracer.Start(parent, "openai.stream", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.cfg.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    messages,
		Stream:      true,
	})
	if err != nil {
		aiFailures.WithLabelValues(c.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	return &ChatStream{stream: stream, model: c.cfg.Model, start: start, span: span, logger: c.logger}, nil
}

// ChatStream yields content deltas until io.EOF.
type ChatStream struct {
	stream *openai.ChatCompletionStream
	model  string
	start  time.Time
	span   trace.Span
	logger zerolog.Logger
	failed bool
	closed bool
}

// Recv returns the next non-empty content delta. io.EOF marks a finished reply.
func (s *ChatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.failed = true
				s.span.RecordError(err)
				s.span.SetStatus(codes.Error, err.Error())
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Close releases the stream and records its duration.
func (s *ChatStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Close()

	aiDuration.WithLabelValues(s.model).Observe(time.Since(s.start).Seconds())
	if s.failed {
		aiFailures.WithLabelValues(s.model).Inc()
		s.logger.Warn().Str("model", s.model).Msg("openai stream ended with an error")
	}
	s.span.End()
	return nil
}
