package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/noah-isme/testem-api/pkg/backboard"
)

// BackboardGateway adapts the Backboard client to the pipeline collaborators.
type BackboardGateway struct {
	client *backboard.Client
	opts   GatewayOptions
}

// GatewayOptions selects the model and memory mode for streamed messages.
// Zero values use the Backboard defaults.
type GatewayOptions struct {
	LLMProvider string
	ModelName   string
	Memory      backboard.MemoryMode
}

// NewBackboardGateway wraps client.
func NewBackboardGateway(client *backboard.Client, opts GatewayOptions) *BackboardGateway {
	return &BackboardGateway{client: client, opts: opts}
}

func (g *BackboardGateway) CreateThread(ctx context.Context, assistantID string) (Thread, error) {
	thread, err := g.client.CreateThread(ctx, assistantID)
	if err != nil {
		return Thread{}, err
	}
	created := thread.CreatedTime()
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Thread{ID: thread.ID, AssistantID: assistantID, CreatedAt: created}, nil
}

func (g *BackboardGateway) DeleteThread(ctx context.Context, threadID string) error {
	return g.client.DeleteThread(ctx, threadID)
}

func (g *BackboardGateway) UploadDocument(ctx context.Context, threadID, filename string, content []byte) (string, error) {
	return g.client.UploadDocument(ctx, threadID, filename, content)
}

func (g *BackboardGateway) DocumentStatus(ctx context.Context, documentID string) (IndexStatus, error) {
	status, err := g.client.GetDocumentStatus(ctx, documentID)
	if err != nil {
		return IndexPending, err
	}
	switch {
	case status.Indexed():
		return IndexIndexed, nil
	case status.Failed():
		return IndexFailed, nil
	default:
		return IndexPending, nil
	}
}

func (g *BackboardGateway) SendMessage(ctx context.Context, threadID, content string) (ChunkStream, error) {
	stream, err := g.client.SendMessage(ctx, threadID, backboard.MessageRequest{
		Content:     content,
		LLMProvider: g.opts.LLMProvider,
		ModelName:   g.opts.ModelName,
		Memory:      g.opts.Memory,
	})
	if err != nil {
		return nil, err
	}
	return &backboardStream{stream: stream}, nil
}

type backboardStream struct {
	stream *backboard.MessageStream
}

func (s *backboardStream) Recv() (Chunk, error) {
	event, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Chunk{}, io.EOF
		}
		return Chunk{}, err
	}

	switch event.Type {
	case backboard.EventContent:
		return Chunk{Type: ChunkContent, Payload: event.Content}, nil
	case backboard.EventComplete:
		return Chunk{Type: ChunkComplete}, nil
	default:
		return Chunk{Type: ChunkError, Payload: event.ErrorMessage()}, nil
	}
}

func (s *backboardStream) Close() error {
	return s.stream.Close()
}
