package reqctx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "  req-42 ")
	require.Equal(t, "req-42", CorrelationID(ctx))

	require.Empty(t, CorrelationID(context.Background()))
	require.Equal(t, context.Background(), WithCorrelationID(context.Background(), " "))
}

func TestCorrelationIDSurvivesDetachedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(WithCorrelationID(context.Background(), "req-7"))
	cancel()

	require.Equal(t, "req-7", CorrelationID(context.WithoutCancel(ctx)))
}

func TestLoggerTagsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Logger(WithCorrelationID(context.Background(), "req-9"), base).Info().Msg("tagged")
	Logger(context.Background(), base).Info().Msg("plain")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var tagged, plain map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &tagged))
	require.NoError(t, json.Unmarshal(lines[1], &plain))
	require.Equal(t, "req-9", tagged["correlation_id"])
	require.NotContains(t, plain, "correlation_id")
}
