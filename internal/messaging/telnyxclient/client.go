package telnyxclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/flowbridge/pkg/logging"
)

const (
	defaultBaseURL   = "https://api.telnyx.com/v2"
	defaultUserAgent = "flowbridge/0.1"
)

// Config controls how the Telnyx client behaves.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	MaxSkew       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
	UserAgent     string
	Now           func() time.Time
}

// Client wraps the Telnyx messaging endpoints the bridge uses.
type Client struct {
	apiKey        string
	baseURL       string
	webhookSecret string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	maxSkew       time.Duration
	logger        *logging.Logger
	userAgent     string
	now           func() time.Time
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("telnyxclient: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	maxSkew := cfg.MaxSkew
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       baseURL,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		maxSkew:       maxSkew,
		logger:        logger,
		userAgent:     userAgent,
		now:           now,
	}, nil
}

// outboundMessage is the wire body of POST /messages.
type outboundMessage struct {
	From               string   `json:"from,omitempty"`
	To                 string   `json:"to"`
	Text               string   `json:"text,omitempty"`
	MediaURLs          []string `json:"media_urls,omitempty"`
	MessagingProfileID string   `json:"messaging_profile_id,omitempty"`
}

// SendMessage sends one SMS, or an MMS when media URLs are set.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*MessageResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(outboundMessage{
		From:               req.From,
		To:                 req.To,
		Text:               req.Body,
		MediaURLs:          req.MediaURLs,
		MessagingProfileID: req.MessagingProfileID,
	})
	if err != nil {
		return nil, fmt.Errorf("telnyxclient: encode message: %w", err)
	}
	data, err := c.post(ctx, "/messages", body)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data MessageResponse `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("telnyxclient: decode message response: %w", err)
	}
	return &envelope.Data, nil
}

// VerifyWebhookSignature checks the Telnyx-Signature header against the
// configured secret and rejects timestamps outside the allowed skew.
func (c *Client) VerifyWebhookSignature(timestamp, signature string, payload []byte) error {
	if c.webhookSecret == "" {
		return ErrNoWebhookSecret
	}
	ts := strings.TrimSpace(timestamp)
	signedAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrInvalidSignature, ts)
	}
	skew := c.now().Sub(time.Unix(signedAt, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > c.maxSkew {
		return fmt.Errorf("%w: timestamp skew %s", ErrInvalidSignature, skew)
	}
	got := strings.ToLower(strings.TrimSpace(signature))
	if got == "" || !hmac.Equal([]byte(Sign(c.webhookSecret, ts, payload)), []byte(got)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of "timestamp.payload".
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// post issues the request and retries temporary failures with exponential
// backoff, up to maxRetries extra attempts.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	for attempt := 0; ; attempt++ {
		data, err := c.roundTrip(ctx, endpoint, body)
		if err == nil {
			return data, nil
		}
		if attempt >= c.maxRetries || !retryable(ctx, err) {
			return nil, err
		}
		c.logger.Warn("telnyx request failed, retrying", "path", path, "attempt", attempt+1, "error", err)
		if err := wait(ctx, c.backoff<<attempt); err != nil {
			return nil, err
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telnyxclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telnyxclient: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telnyxclient: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, data)
	}
	return data, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return !errors.Is(err, context.Canceled)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	// ErrNoWebhookSecret means inbound webhooks cannot be verified.
	ErrNoWebhookSecret = errors.New("telnyxclient: webhook secret not configured")
	// ErrInvalidSignature covers missing, stale or mismatched signatures.
	ErrInvalidSignature = errors.New("telnyxclient: invalid webhook signature")
)

// APIError is a non-2xx Telnyx answer, built from the first entry of the
// response's "errors" list when present.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Title      string `json:"title,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Title
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		return fmt.Sprintf("telnyxclient: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("telnyxclient: %s (status=%d)", msg, e.StatusCode)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func parseAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Errors []APIError `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		apiErr := parsed.Errors[0]
		apiErr.StatusCode = status
		return &apiErr
	}
	return &APIError{StatusCode: status, Detail: strings.TrimSpace(string(body))}
}
