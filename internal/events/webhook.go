package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/flowbridge/pkg/logging"
)

var webhookTracer = otel.Tracer("flowbridge.events")

// WebhookDelivery POSTs outbox envelopes to a subscriber URL.
type WebhookDelivery struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

func NewWebhookDelivery(url string, client *http.Client, logger *logging.Logger) *WebhookDelivery {
	if strings.TrimSpace(url) == "" {
		panic("events: webhook url required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookDelivery{url: url, client: client, logger: logger}
}

// Handle sends the entry. Any non-2xx answer is an error so the entry stays pending.
func (w *WebhookDelivery) Handle(ctx context.Context, entry OutboxEntry) error {
	ctx, span := webhookTracer.Start(ctx, "events.webhook", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", entry.ID.String()),
		attribute.String("event.type", entry.Type),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(entry.Payload))
	if err != nil {
		return fmt.Errorf("events: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", entry.ID.String())
	req.Header.Set("X-Event-Type", entry.Type)

	resp, err := w.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook unreachable")
		return fmt.Errorf("events: post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("events: webhook returned %d", resp.StatusCode)
	}
	w.logger.Debug("webhook delivered", "event_id", entry.ID, "type", entry.Type)
	return nil
}
