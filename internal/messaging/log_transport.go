package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/flowbridge/internal/relay"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// LogTransport records outbound actions without delivering them. It backs
// local development when no messaging account is configured, and keeps the
// relay's pacing by waiting each action's delay before logging it.
type LogTransport struct {
	logger *logging.Logger
	wait   func(context.Context, time.Duration) error
}

var _ relay.Transport = (*LogTransport)(nil)

func NewLogTransport(logger *logging.Logger) *LogTransport {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogTransport{logger: logger, wait: sleepContext}
}

func (t *LogTransport) SendText(ctx context.Context, to string, opts relay.Options, text string) error {
	return t.record(ctx, to, "text", opts, "text", text)
}

func (t *LogTransport) SendMedia(ctx context.Context, to string, opts relay.Options, media relay.Media) error {
	return t.record(ctx, to, string(media.Kind), opts, "url", media.URL)
}

func (t *LogTransport) SendVoice(ctx context.Context, to string, opts relay.Options, audioURL string) error {
	return t.record(ctx, to, "voice", opts, "url", audioURL)
}

func (t *LogTransport) record(ctx context.Context, to, kind string, opts relay.Options, args ...any) error {
	if opts.Delay > 0 {
		if err := t.wait(ctx, opts.Delay); err != nil {
			return fmt.Errorf("messaging: wait before send: %w", err)
		}
	}
	attrs := append([]any{
		"to", to,
		"kind", kind,
		"presence", opts.Presence,
		"delay_ms", opts.Delay.Milliseconds(),
	}, args...)
	t.logger.Info("outbound message (not delivered)", attrs...)
	return nil
}
