package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/testem-api/internal/observability"
)

func TestObservabilityCountsAPIErrors(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(zerolog.Nop()))
	app.Get("/api/v1/exams/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	before := testutil.ToFloat64(observability.APIErrors().WithLabelValues(http.MethodGet, "/api/v1/exams/:id", "404"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exams/missing", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))

	after := testutil.ToFloat64(observability.APIErrors().WithLabelValues(http.MethodGet, "/api/v1/exams/:id", "404"))
	require.Equal(t, before+1, after)
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=100ms", latencyBucket(40*time.Millisecond))
	require.Equal(t, "<=30s", latencyBucket(12*time.Second))
	require.Equal(t, ">30s", latencyBucket(2*time.Minute))
}
