package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TESTEM_JWT_SECRET", "secret")
	t.Setenv("TESTEM_BACKBOARD_API_KEY", "bb-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 50, cfg.PollMaxAttempts)
	require.Equal(t, time.Second, cfg.PollDelay)
	require.Equal(t, 4, cfg.UploadConcurrency)
	require.Equal(t, 5*time.Minute, cfg.PipelineTimeout)
	require.Equal(t, 24*time.Hour, cfg.AssistantCacheTTL)
	require.False(t, cfg.RequireAllIndexed)
	require.Equal(t, GraderBackboard, cfg.AIProvider)
	require.Equal(t, "https://app.backboard.io/api", cfg.BackboardBaseURL)
	require.Equal(t, "Auto", cfg.BackboardMemory)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TESTEM_JWT_SECRET", "secret")
	t.Setenv("TESTEM_BACKBOARD_API_KEY", "bb-key")
	t.Setenv("TESTEM_APP_PORT", ":9090")
	t.Setenv("TESTEM_PIPELINE_POLL_MAX_ATTEMPTS", "10")
	t.Setenv("TESTEM_PIPELINE_POLL_DELAY", "250ms")
	t.Setenv("TESTEM_PIPELINE_REQUIRE_ALL_INDEXED", "true")
	t.Setenv("TESTEM_AI_PROVIDER", "OpenAI")
	t.Setenv("TESTEM_OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 10, cfg.PollMaxAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.PollDelay)
	require.True(t, cfg.RequireAllIndexed)
	require.Equal(t, GraderOpenAI, cfg.AIProvider)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("TESTEM_JWT_SECRET", "secret")
	t.Setenv("TESTEM_BACKBOARD_API_KEY", "bb-key")

	t.Setenv("TESTEM_PIPELINE_TIMEOUT", "soon")
	_, err := Load()
	require.ErrorContains(t, err, "pipeline.timeout")

	t.Setenv("TESTEM_PIPELINE_TIMEOUT", "2m")
	t.Setenv("TESTEM_AI_PROVIDER", "openai")
	_, err = Load()
	require.ErrorContains(t, err, "openai api key")

	t.Setenv("TESTEM_AI_PROVIDER", "anthropic")
	_, err = Load()
	require.ErrorContains(t, err, "unsupported ai provider")
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("TESTEM_JWT_SECRET", "")
	t.Setenv("TESTEM_BACKBOARD_API_KEY", "bb-key")

	_, err := Load()
	require.ErrorContains(t, err, "jwt secret")
}
