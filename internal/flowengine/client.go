package flowengine

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/flowbridge/internal/observability/metrics"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

const (
	sendMessagePath  = "/api/v1/sendMessage"
	defaultUserAgent = "flowbridge/0.1"
)

var tracer = otel.Tracer("flowbridge.internal.flowengine")

// ErrUnreachable wraps transport-level failures talking to the flow engine.
var ErrUnreachable = errors.New("flowengine: engine unreachable")

// APIError is returned for non-2xx engine responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowengine: status %d: %s", e.StatusCode, e.Body)
}

// Config controls how the client behaves.
type Config struct {
	// Timeout is applied only when HTTPClient is nil. Zero keeps the
	// transport default.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.BridgeMetrics
	UserAgent  string
}

// Client posts to the flow engine's sendMessage endpoint. It holds no
// per-session state and never retries.
type Client struct {
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.BridgeMetrics
	userAgent  string
}

// New creates a configured Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
		userAgent:  userAgent,
	}
}

type startParams struct {
	Flow               string            `json:"flow"`
	PrefilledVariables map[string]string `json:"prefilledVariables"`
}

type startRequest struct {
	StartParams startParams `json:"startParams"`
}

type continueRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Start opens a new run of flow with the given prefilled variables.
func (c *Client) Start(ctx context.Context, baseURL, flow string, vars map[string]string) (*Reply, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return c.send(ctx, "start", baseURL, startRequest{StartParams: startParams{
		Flow:               flow,
		PrefilledVariables: vars,
	}})
}

// Continue sends the partner's text into an existing engine session.
func (c *Client) Continue(ctx context.Context, baseURL, sessionID, message string) (*Reply, error) {
	return c.send(ctx, "continue", baseURL, continueRequest{Message: message, SessionID: sessionID})
}

func (c *Client) send(ctx context.Context, call, baseURL string, payload any) (*Reply, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: base url not configured", ErrUnreachable)
	}
	endpoint := strings.TrimRight(baseURL, "/") + sendMessagePath

	ctx, span := tracer.Start(ctx, "flowengine.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("flowengine.call", call),
		attribute.String("flowengine.url", endpoint),
	)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("flowengine: marshal %s body: %w", call, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("flowengine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveEngineCall(call, 0, time.Since(start).Seconds())
		span.RecordError(err)
		c.logger.Warn("flow engine request failed", "call", call, "url", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveEngineCall(call, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
		span.RecordError(apiErr)
		return nil, apiErr
	}

	var reply Reply
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &reply); err != nil {
			return nil, fmt.Errorf("flowengine: decode reply: %w", err)
		}
	}
	c.logger.Debug("flow engine replied",
		"call", call,
		"session_id", reply.SessionID,
		"messages", len(reply.Messages),
		"has_input", reply.Input != nil,
	)
	return &reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
