package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/testem-api/internal/retry"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func noSleep(context.Context, time.Duration) error { return nil }

func testPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Sleep: noSleep}
}

type fakeStore struct {
	mu          sync.Mutex
	uploadErrs  map[string]error
	statuses    map[string][]IndexStatus
	statusErr   map[string]error
	statusCalls map[string]int
	uploads     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		uploadErrs:  map[string]error{},
		statuses:    map[string][]IndexStatus{},
		statusErr:   map[string]error{},
		statusCalls: map[string]int{},
	}
}

// UploadDocument returns "ext-<filename>" as the document id.
func (s *fakeStore) UploadDocument(_ context.Context, threadID, filename string, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.uploadErrs[filename]; err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, threadID+"/"+filename)
	return "ext-" + filename, nil
}

// DocumentStatus replays the configured sequence and repeats its last entry.
func (s *fakeStore) DocumentStatus(_ context.Context, documentID string) (IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.statusCalls[documentID]
	s.statusCalls[documentID] = call + 1

	if err := s.statusErr[documentID]; err != nil {
		return IndexPending, err
	}
	seq := s.statuses[documentID]
	if len(seq) == 0 {
		return IndexIndexed, nil
	}
	if call >= len(seq) {
		return seq[len(seq)-1], nil
	}
	return seq[call], nil
}

func (s *fakeStore) calls(documentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls[documentID]
}

func (s *fakeStore) totalStatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.statusCalls {
		total += n
	}
	return total
}

type fakeBlobs struct {
	errs map[string]error
}

func (b fakeBlobs) Fetch(_ context.Context, storagePath string) ([]byte, error) {
	if err := b.errs[storagePath]; err != nil {
		return nil, err
	}
	return []byte("content of " + storagePath), nil
}

type fakeThreads struct {
	mu              sync.Mutex
	createErr       error
	threadID        string
	deleteErr       error
	deleted         []string
	deleteErrAtCall error
}

func (t *fakeThreads) CreateThread(_ context.Context, assistantID string) (Thread, error) {
	if t.createErr != nil {
		return Thread{}, t.createErr
	}
	id := t.threadID
	if id == "" {
		id = "thread-1"
	}
	return Thread{ID: id, AssistantID: assistantID, CreatedAt: time.Now()}, nil
}

func (t *fakeThreads) DeleteThread(ctx context.Context, threadID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = append(t.deleted, threadID)
	t.deleteErrAtCall = ctx.Err()
	return t.deleteErr
}

func (t *fakeThreads) deletions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.deleted...)
}

type sliceStream struct {
	chunks []Chunk
	err    error
	pos    int
	closed bool
}

func (s *sliceStream) Recv() (Chunk, error) {
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeSender struct {
	sendErr  error
	stream   *sliceStream
	threadID string
	prompt   string
}

func (f *fakeSender) SendMessage(_ context.Context, threadID, content string) (ChunkStream, error) {
	f.threadID = threadID
	f.prompt = content
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.stream, nil
}

func replyWith(text string) *fakeSender {
	return &fakeSender{stream: &sliceStream{chunks: []Chunk{
		{Type: ChunkContent, Payload: text},
		{Type: ChunkComplete},
	}}}
}

var errBoom = errors.New("boom")
