package backboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public Backboard API endpoint.
const DefaultBaseURL = "https://app.backboard.io/api"

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "testem",
		Subsystem: "backboard",
		Name:      "request_duration_seconds",
		Help:      "Duration of Backboard API requests",
	}, []string{"operation"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "testem",
		Subsystem: "backboard",
		Name:      "request_failures_total",
		Help:      "Number of failed Backboard API requests",
	}, []string{"operation"})
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("backboard api key is required")

// Config defines connection options for the Backboard client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the Backboard assistants API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// New builds a client using the provided configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Timeout covers response headers only; ctx bounds streamed bodies.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Timeout > 0 {
			transport.ResponseHeaderTimeout = cfg.Timeout
		}
		httpClient = &http.Client{Transport: transport}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		tracer:     otel.Tracer("github.com/noah-isme/testem-api/pkg/backboard"),
		logger:     logger.With().Str("component", "backboard").Logger(),
	}, nil
}

// HTTPError carries a non-2xx Backboard response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backboard http %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode returns the response status, or 0 for a nil error.
func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsNotFound reports whether err is a Backboard 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

type request struct {
	operation   string
	method      string
	path        string
	body        io.Reader
	contentType string
	accept      string
}

func jsonRequest(operation, method, path string, payload any) (request, error) {
	req := request{operation: operation, method: method, path: path}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("encode %s payload: %w", operation, err)
		}
		req.body = bytes.NewReader(raw)
		req.contentType = "application/json"
	}
	return req, nil
}

// send executes the request and returns the open response for 2xx statuses.
// The caller owns the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}
	if r.accept != "" {
		httpReq.Header.Set("Accept", r.accept)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

// do executes a request, validates the JSON reply against schema when given
// and decodes it into out.
func (c *Client) do(ctx context.Context, r request, schema *jsonschema.Schema, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "backboard."+r.operation, trace.WithAttributes(
		attribute.String("http.method", r.method),
		attribute.String("backboard.operation", r.operation),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(r.operation).Observe(time.Since(start).Seconds())
		if err != nil {
			requestFailures.WithLabelValues(r.operation).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn().Err(err).Str("operation", r.operation).Msg("backboard request failed")
		}
	}()

	resp, err := c.send(ctx, r)
	if err != nil {
		return fmt.Errorf("backboard %s: %w", r.operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backboard %s: read body: %w", r.operation, err)
	}
	if out == nil {
		return nil
	}

	if schema != nil {
		if err := validateJSON(schema, raw); err != nil {
			return fmt.Errorf("backboard %s: %w", r.operation, err)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backboard %s: decode response: %w", r.operation, err)
	}
	return nil
}
