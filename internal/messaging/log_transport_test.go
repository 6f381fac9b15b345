package messaging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/flowbridge/internal/relay"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

func TestLogTransportRecordsSends(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(logging.NewWithWriter(&buf, "info"))
	var waits []time.Duration
	tr.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	ctx := context.Background()

	opts := relay.Options{Delay: 1500 * time.Millisecond, Presence: relay.PresenceComposing}
	require.NoError(t, tr.SendText(ctx, "15550001111@sms", opts, "hello"))
	require.NoError(t, tr.SendMedia(ctx, "15550001111@sms", relay.Options{}, relay.Media{Kind: relay.MediaImage, URL: "https://cdn.example/a.png"}))
	require.NoError(t, tr.SendVoice(ctx, "15550001111@sms", relay.Options{Delay: 2 * time.Second, Presence: relay.PresenceRecording}, "https://cdn.example/a.ogg"))

	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 2 * time.Second}, waits)

	out := buf.String()
	assert.Contains(t, out, `"text":"hello"`)
	assert.Contains(t, out, `"delay_ms":1500`)
	assert.Contains(t, out, `"kind":"image"`)
	assert.Contains(t, out, `"url":"https://cdn.example/a.ogg"`)
	assert.Contains(t, out, `"presence":"recording"`)
}

func TestLogTransportHonoursDelay(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(logging.NewWithWriter(&buf, "info"))

	start := time.Now()
	require.NoError(t, tr.SendText(context.Background(), "p", relay.Options{Delay: 30 * time.Millisecond}, "paced"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Contains(t, buf.String(), `"text":"paced"`)
}

func TestLogTransportCancelledWaitSkipsSend(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(logging.NewWithWriter(&buf, "info"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.SendText(ctx, "p", relay.Options{Delay: time.Minute}, "never")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotContains(t, buf.String(), "never")
}
