package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/noah-isme/testem-api/pkg/ai"
)

// OpenAISender sends thread messages straight to OpenAI. The thread id is
// not forwarded, so replies are not grounded in the thread's documents.
type OpenAISender struct {
	chat *ai.OpenAIChat
}

// NewOpenAISender wraps chat as a MessageSender.
func NewOpenAISender(chat *ai.OpenAIChat) *OpenAISender {
	return &OpenAISender{chat: chat}
}

func (s *OpenAISender) SendMessage(ctx context.Context, _ string, content string) (ChunkStream, error) {
	stream, err := s.chat.Stream(ctx, content)
	if err != nil {
		return nil, err
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *ai.ChatStream
	done   bool
}

// Recv maps the end of the delta stream to a complete chunk.
func (s *openAIStream) Recv() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}
	delta, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		s.done = true
		return Chunk{Type: ChunkComplete}, nil
	}
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Type: ChunkContent, Payload: delta}, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
