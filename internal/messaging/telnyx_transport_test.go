package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/flowbridge/internal/messaging/telnyxclient"
	"github.com/wolfman30/flowbridge/internal/relay"
)

type stubSender struct {
	reqs []telnyxclient.SendMessageRequest
	err  error
}

func (s *stubSender) SendMessage(_ context.Context, req telnyxclient.SendMessageRequest) (*telnyxclient.MessageResponse, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &telnyxclient.MessageResponse{ID: "msg"}, nil
}

func newStubTransport(sender *stubSender) (*TelnyxTransport, *[]time.Duration) {
	waits := &[]time.Duration{}
	tr := NewTelnyxTransport(sender, "+1 (555) 000-1111", "profile-1", nil)
	tr.wait = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return tr, waits
}

func TestTelnyxTransportSendText(t *testing.T) {
	sender := &stubSender{}
	tr, waits := newStubTransport(sender)

	err := tr.SendText(context.Background(), "15552223333", relay.Options{Delay: 1200 * time.Millisecond, Presence: relay.PresenceComposing}, "hello")
	require.NoError(t, err)

	require.Len(t, sender.reqs, 1)
	assert.Equal(t, telnyxclient.SendMessageRequest{
		From:               "+15550001111",
		To:                 "+15552223333",
		Body:               "hello",
		MessagingProfileID: "profile-1",
	}, sender.reqs[0])
	assert.Equal(t, []time.Duration{1200 * time.Millisecond}, *waits)
}

func TestTelnyxTransportMediaAndVoiceUseMediaURLs(t *testing.T) {
	sender := &stubSender{}
	tr, waits := newStubTransport(sender)
	ctx := context.Background()

	require.NoError(t, tr.SendMedia(ctx, "1555", relay.Options{}, relay.Media{Kind: relay.MediaImage, URL: "http://img"}))
	require.NoError(t, tr.SendVoice(ctx, "1555", relay.Options{Presence: relay.PresenceRecording, VoiceEncoding: true}, "http://a.ogg"))

	require.Len(t, sender.reqs, 2)
	assert.Equal(t, []string{"http://img"}, sender.reqs[0].MediaURLs)
	assert.Equal(t, []string{"http://a.ogg"}, sender.reqs[1].MediaURLs)
	assert.Empty(t, *waits)

	assert.Error(t, tr.SendMedia(ctx, "1555", relay.Options{}, relay.Media{Kind: relay.MediaVideo}))
	assert.Error(t, tr.SendVoice(ctx, "1555", relay.Options{}, ""))
}

func TestTelnyxTransportErrors(t *testing.T) {
	sender := &stubSender{err: errors.New("rate limited")}
	tr, _ := newStubTransport(sender)

	err := tr.SendText(context.Background(), "1555", relay.Options{}, "x")
	assert.ErrorContains(t, err, "rate limited")

	err = tr.SendText(context.Background(), "not-a-number", relay.Options{}, "x")
	assert.ErrorContains(t, err, "invalid destination")
}

func TestTelnyxTransportDelayHonoursCancellation(t *testing.T) {
	sender := &stubSender{}
	tr := NewTelnyxTransport(sender, "+15550001111", "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.SendText(ctx, "1555", relay.Options{Delay: time.Hour}, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.reqs)
}

func TestPhoneHelpers(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizeE164(" +1 (555) 123-4567 "))
	assert.Equal(t, "", NormalizeE164("abc"))
	assert.Equal(t, "15551234567@sms", RemoteJID("+1 555 123 4567"))
	assert.Equal(t, "", RemoteJID(""))
	assert.Equal(t, "+15551234567", PhoneFromJID("15551234567@sms"))
	assert.Equal(t, "+5511999", PhoneFromJID("5511999@s.whatsapp.net"))
}
