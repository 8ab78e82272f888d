// Package gateway is the HTTP client for the storefront backend REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultMaxResponseSize = 10 << 20

// TokenSource supplies the bearer token for a request. An empty token sends
// the request unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

// Token implements TokenSource
func (f TokenFunc) Token() string { return f() }

// Config holds client settings
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxResponseSize int64
}

// Client calls the backend API. It is safe for concurrent use; ForSession
// derives clients that share the connection pool.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	maxResponseSize int64
	tokens          TokenSource
	metrics         *telemetry.SyncMetrics
	logger          *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records call latency into m
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("gateway") }
}

// New creates an unauthenticated client
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		maxResponseSize: cfg.MaxResponseSize,
		logger:          zap.NewNop(),
	}
	if c.maxResponseSize <= 0 {
		c.maxResponseSize = defaultMaxResponseSize
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForSession returns a client that authenticates with tokens
func (c *Client) ForSession(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// do sends one request. body is JSON-encoded when non-nil; out receives the
// response payload after the optional {"data": ...} envelope is removed.
// route is the templated path used for span names and metrics.
func (c *Client) do(ctx context.Context, method, route, path string, body, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "backend "+method+" "+route,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.request.method", method),
		telemetry.WithAttribute("http.route", route),
	)
	defer span.End()

	err := c.send(ctx, method, route, path, body, out)
	telemetry.RecordError(span, err)
	return err
}

func (c *Client) send(ctx context.Context, method, route, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if id := logger.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordGatewayCall(ctx, method, route, 0, time.Since(start))
		return fmt.Errorf("backend %s %s failed: %w", method, route, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	c.metrics.RecordGatewayCall(ctx, method, route, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := &Error{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, respBody),
			Method:     method,
			Route:      route,
		}
		logger.Enrich(ctx, c.logger).Debug("Backend call rejected",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", resp.StatusCode),
			zap.String("message", gerr.Message),
		)
		return gerr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(respBody), out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, route, err)
	}
	return nil
}

// unwrapData strips a {"data": ...} envelope when present
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(trimmed, &env) == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data
	}
	return trimmed
}

// listPayload accepts either a bare array or an object carrying the array
// under "items".
type listPayload []json.RawMessage

func (l *listPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		*l = wrapped.Items
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = items
	return nil
}
