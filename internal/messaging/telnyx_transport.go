package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/flowbridge/internal/messaging/telnyxclient"
	"github.com/wolfman30/flowbridge/internal/relay"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

var telnyxTracer = otel.Tracer("flowbridge.internal.messaging.telnyx")

type messageSender interface {
	SendMessage(ctx context.Context, req telnyxclient.SendMessageRequest) (*telnyxclient.MessageResponse, error)
}

// TelnyxTransport delivers relay actions as SMS/MMS. SMS has no presence
// primitive, so the requested delay is spent waiting and the presence is
// only recorded on the span and in logs.
type TelnyxTransport struct {
	client             messageSender
	from               string
	messagingProfileID string
	logger             *logging.Logger
	wait               func(ctx context.Context, d time.Duration) error
}

var _ relay.Transport = (*TelnyxTransport)(nil)

// NewTelnyxTransport builds a transport sending from the given number or profile.
func NewTelnyxTransport(client messageSender, from, messagingProfileID string, logger *logging.Logger) *TelnyxTransport {
	if client == nil {
		panic("messaging: telnyx client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxTransport{
		client:             client,
		from:               NormalizeE164(from),
		messagingProfileID: messagingProfileID,
		logger:             logger,
		wait:               sleepContext,
	}
}

func (t *TelnyxTransport) SendText(ctx context.Context, to string, opts relay.Options, text string) error {
	return t.send(ctx, "text", to, opts, telnyxclient.SendMessageRequest{Body: text})
}

func (t *TelnyxTransport) SendMedia(ctx context.Context, to string, opts relay.Options, media relay.Media) error {
	if media.URL == "" {
		return errors.New("messaging: media url required")
	}
	return t.send(ctx, string(media.Kind), to, opts, telnyxclient.SendMessageRequest{MediaURLs: []string{media.URL}})
}

func (t *TelnyxTransport) SendVoice(ctx context.Context, to string, opts relay.Options, audioURL string) error {
	if audioURL == "" {
		return errors.New("messaging: audio url required")
	}
	return t.send(ctx, "voice", to, opts, telnyxclient.SendMessageRequest{MediaURLs: []string{audioURL}})
}

func (t *TelnyxTransport) send(ctx context.Context, kind, to string, opts relay.Options, req telnyxclient.SendMessageRequest) error {
	number := NormalizeE164(to)
	if number == "" {
		return fmt.Errorf("messaging: invalid destination %q", to)
	}

	ctx, span := telnyxTracer.Start(ctx, "messaging.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("flowbridge.kind", kind),
		attribute.String("flowbridge.presence", string(opts.Presence)),
		attribute.Int64("flowbridge.delay_ms", opts.Delay.Milliseconds()),
		attribute.Bool("flowbridge.voice", opts.VoiceEncoding),
	)

	if opts.Delay > 0 {
		t.logger.Debug("presence", "to", number, "presence", opts.Presence, "delay_ms", opts.Delay.Milliseconds())
		if err := t.wait(ctx, opts.Delay); err != nil {
			span.RecordError(err)
			return fmt.Errorf("messaging: wait before send: %w", err)
		}
	}

	req.To = number
	req.From = t.from
	req.MessagingProfileID = t.messagingProfileID
	resp, err := t.client.SendMessage(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "telnyx send failed")
		return fmt.Errorf("messaging: telnyx send: %w", err)
	}
	t.logger.Info("telnyx message sent", "to", number, "kind", kind, "message_id", resp.ID)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
