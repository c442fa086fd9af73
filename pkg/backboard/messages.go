package backboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultLLMProvider = "openai"
	defaultModelName   = "gpt-4o"
)

// Stream event types emitted by the message endpoint.
const (
	EventContent  = "content_streaming"
	EventComplete = "message_complete"
	EventError    = "error"
)

// MemoryMode controls whether Backboard reads or writes assistant memory for a message.
type MemoryMode string

const (
	MemoryOff  MemoryMode = "Off"
	MemoryAuto MemoryMode = "Auto"
)

// MessageRequest is a single user message posted to a thread.
type MessageRequest struct {
	Content     string
	LLMProvider string
	ModelName   string
	Memory      MemoryMode
}

// StreamEvent is one decoded event of a streamed reply.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorMessage returns the failure text of an error event.
func (e StreamEvent) ErrorMessage() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// SendMessage posts a message and returns the reply stream. The caller must
// Close the stream.
func (c *Client) SendMessage(ctx context.Context, threadID string, in MessageRequest) (*MessageStream, error) {
	ctx, span := c.tracer.Start(ctx, "backboard.send_message", trace.WithAttributes(
		attribute.String("backboard.thread_id", threadID),
		attribute.String("backboard.model", in.modelName()),
	))

	body, contentType, err := in.form()
	if err != nil {
		span.End()
		return nil, fmt.Errorf("backboard send_message: %w", err)
	}

	start := time.Now()
	resp, err := c.send(ctx, request{
		operation:   "send_message",
		method:      http.MethodPost,
		path:        "/threads/" + url.PathEscape(threadID) + "/messages",
		body:        body,
		contentType: contentType,
		accept:      "text/event-stream",
	})
	requestDuration.WithLabelValues("send_message").Observe(time.Since(start).Seconds())
	if err != nil {
		requestFailures.WithLabelValues("send_message").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("backboard send_message: %w", err)
	}

	return &MessageStream{body: resp.Body, reader: bufio.NewReader(resp.Body), span: span}, nil
}

func (m MessageRequest) modelName() string {
	if m.ModelName == "" {
		return defaultModelName
	}
	return m.ModelName
}

func (m MessageRequest) form() (*bytes.Buffer, string, error) {
	provider := m.LLMProvider
	if provider == "" {
		provider = defaultLLMProvider
	}
	memory := m.Memory
	if memory == "" {
		memory = MemoryAuto
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"content", m.Content},
		{"llm_provider", provider},
		{"model_name", m.modelName()},
		{"stream", strconv.FormatBool(true)},
		{"memory", string(memory)},
		{"send_to_llm", strconv.FormatBool(true)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// MessageStream reads server-sent events from a message reply.
type MessageStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	span   trace.Span
	events int
	closed bool
}

// Recv returns the next known event. Unknown event types and keep-alive
// comments are skipped. io.EOF marks the end of the response body.
func (s *MessageStream) Recv() (StreamEvent, error) {
	for {
		data, err := s.nextData()
		if err != nil {
			return StreamEvent{}, err
		}
		if data == "" || data == "[DONE]" {
			continue
		}

		if err := validateJSON(streamEventSchema, []byte(data)); err != nil {
			return StreamEvent{}, err
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return StreamEvent{}, fmt.Errorf("decode stream event: %w", err)
		}

		switch event.Type {
		case EventContent, EventComplete, EventError:
			s.events++
			return event, nil
		}
	}
}

// nextData returns the joined data lines of the next SSE event.
func (s *MessageStream) nextData() (string, error) {
	var dataLines []string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if eof {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			return "", io.EOF
		}
	}
}

// Close releases the response body and ends the request span.
func (s *MessageStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.span.SetAttributes(attribute.Int("backboard.events", s.events))
	s.span.End()
	return s.body.Close()
}
