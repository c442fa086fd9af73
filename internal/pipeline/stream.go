package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Aggregate concatenates content chunks until the first complete chunk. An
// error chunk, a stream that ends without completing, or a cancelled context
// discards the partial output.
func Aggregate(ctx context.Context, stream ChunkStream) (string, error) {
	var out strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", &StreamError{Message: "stream ended before completion"}
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("%w: %v", ErrStreamFailed, err)
		}

		switch chunk.Type {
		case ChunkContent:
			out.WriteString(chunk.Payload)
		case ChunkComplete:
			return out.String(), nil
		case ChunkError:
			message := strings.TrimSpace(chunk.Payload)
			if message == "" {
				message = "unknown error"
			}
			return "", &StreamError{Message: message}
		default:
			return "", &StreamError{Message: fmt.Sprintf("unexpected chunk type %q", chunk.Type)}
		}
	}
}
