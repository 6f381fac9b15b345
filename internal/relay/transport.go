package relay

import (
	"context"
	"strings"
	"time"
)

// Presence is the activity signal shown to the partner while a send is delayed.
type Presence string

const (
	PresenceComposing Presence = "composing"
	PresenceRecording Presence = "recording"
)

// MediaKind identifies the media attachment type.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Options tune a single transport send. The transport is expected to show
// Presence for Delay before delivering.
type Options struct {
	Delay         time.Duration
	Presence      Presence
	LinkPreview   bool
	VoiceEncoding bool
}

// Media references a remote media file.
type Media struct {
	Kind MediaKind
	URL  string
}

// Transport is the outbound side of the messaging account.
type Transport interface {
	SendText(ctx context.Context, to string, opts Options, text string) error
	SendMedia(ctx context.Context, to string, opts Options, media Media) error
	SendVoice(ctx context.Context, to string, opts Options, audioURL string) error
}

// PartnerNumber strips the domain part of a chat identifier
// ("5511999999999@s.whatsapp.net" -> "5511999999999").
func PartnerNumber(remoteJID string) string {
	number, _, _ := strings.Cut(strings.TrimSpace(remoteJID), "@")
	return number
}
