package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/flowbridge/internal/flowengine"
)

func textMessage(id string, blocks ...[]flowengine.Element) flowengine.Message {
	rich := make([]flowengine.RichTextBlock, 0, len(blocks))
	for _, children := range blocks {
		rich = append(rich, flowengine.RichTextBlock{Type: "p", Children: children})
	}
	return flowengine.Message{ID: id, Type: flowengine.MessageText, Content: flowengine.MessageContent{RichText: rich}}
}

func TestRenderRichText(t *testing.T) {
	tests := []struct {
		name        string
		blocks      []flowengine.RichTextBlock
		want        string
		wantPreview bool
	}{
		{
			name: "bold then italic in one block",
			blocks: []flowengine.RichTextBlock{{Children: []flowengine.Element{
				{Bold: true, Text: "a"},
				{Italic: true, Text: "b"},
			}}},
			want: "*a*_b_",
		},
		{
			name: "markers stack cumulatively",
			blocks: []flowengine.RichTextBlock{{Children: []flowengine.Element{
				{Bold: true, Italic: true, Underline: true, Text: "x"},
			}}},
			want: "~_*x*_~",
		},
		{
			name: "hyperlink replaces text and enables preview",
			blocks: []flowengine.RichTextBlock{{Children: []flowengine.Element{
				{Text: "see "},
				{URL: "http://x", Children: []flowengine.Element{{Text: "label"}}},
			}}},
			want:        "see [label](http://x)",
			wantPreview: true,
		},
		{
			name: "blocks joined by newline without trailing newline",
			blocks: []flowengine.RichTextBlock{
				{Children: []flowengine.Element{{Text: "line one"}}},
				{Children: []flowengine.Element{{Text: "line two"}}},
			},
			want: "line one\nline two",
		},
		{
			name: "only one trailing newline stripped",
			blocks: []flowengine.RichTextBlock{
				{Children: []flowengine.Element{{Text: "top"}}},
				{Children: nil},
			},
			want: "top\n",
		},
		{
			name: "hyperlink without children has empty label",
			blocks: []flowengine.RichTextBlock{{Children: []flowengine.Element{
				{URL: "http://y"},
			}}},
			want:        "[](http://y)",
			wantPreview: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, preview := RenderRichText(tt.blocks)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantPreview, preview)
		})
	}
}

func TestRenderChoices(t *testing.T) {
	got := RenderChoices([]flowengine.InputItem{{Content: "Yes"}, {Content: "No"}})
	assert.Equal(t, "▶️ Yes\n▶️ No", got)
	assert.Equal(t, "", RenderChoices(nil))
}

func TestRender_OrderAndPacing(t *testing.T) {
	reply := &flowengine.Reply{
		Messages: []flowengine.Message{
			textMessage("b1", []flowengine.Element{{Text: "hello"}}),
			{ID: "b2", Type: flowengine.MessageImage, Content: flowengine.MessageContent{URL: "http://img/1.png"}},
			{ID: "b3", Type: flowengine.MessageVideo, Content: flowengine.MessageContent{URL: "http://vid/1.mp4"}},
			{ID: "b4", Type: flowengine.MessageAudio, Content: flowengine.MessageContent{URL: "http://aud/1.ogg"}},
			{ID: "b5", Type: "embed"},
		},
		Input: &flowengine.Input{Type: flowengine.InputChoice, Items: []flowengine.InputItem{{Content: "Yes"}, {Content: "No"}}},
		ClientSideActions: []flowengine.ClientSideAction{
			{LastBubbleBlockID: "b2", Wait: &flowengine.WaitAction{SecondsToWaitFor: 3}},
		},
	}

	actions := Render(reply, 0)
	require.Len(t, actions, 5)

	assert.Equal(t, Action{Kind: ActionText, Text: "hello", Options: Options{Delay: time.Second, Presence: PresenceComposing}}, actions[0])
	assert.Equal(t, Action{Kind: ActionMedia, Media: Media{Kind: MediaImage, URL: "http://img/1.png"}, Options: Options{Delay: 3 * time.Second, Presence: PresenceComposing}}, actions[1])
	assert.Equal(t, Action{Kind: ActionMedia, Media: Media{Kind: MediaVideo, URL: "http://vid/1.mp4"}, Options: Options{Delay: time.Second, Presence: PresenceComposing}}, actions[2])
	assert.Equal(t, Action{Kind: ActionVoice, Media: Media{URL: "http://aud/1.ogg"}, Options: Options{Delay: time.Second, Presence: PresenceRecording, VoiceEncoding: true}}, actions[3])
	assert.Equal(t, Action{Kind: ActionText, Text: "▶️ Yes\n▶️ No", Options: Options{Delay: 1200 * time.Millisecond, Presence: PresenceComposing}}, actions[4])
}

func TestRender_UsesConfiguredDefaultDelay(t *testing.T) {
	reply := &flowengine.Reply{Messages: []flowengine.Message{textMessage("b1", []flowengine.Element{{Text: "x"}})}}
	actions := Render(reply, 2500*time.Millisecond)
	require.Len(t, actions, 1)
	assert.Equal(t, 2500*time.Millisecond, actions[0].Options.Delay)
}

func TestRender_NonChoiceInputIgnored(t *testing.T) {
	reply := &flowengine.Reply{Input: &flowengine.Input{Type: "text input"}}
	assert.Empty(t, Render(reply, 0))
	assert.Nil(t, Render(nil, 0))
}

func TestPartnerNumber(t *testing.T) {
	assert.Equal(t, "5511999999999", PartnerNumber("5511999999999@s.whatsapp.net"))
	assert.Equal(t, "+15551234567", PartnerNumber("+15551234567"))
	assert.Equal(t, "", PartnerNumber(""))
}

func TestFallbackAction(t *testing.T) {
	a := FallbackAction("Sorry?", 0)
	assert.Equal(t, ActionText, a.Kind)
	assert.Equal(t, "Sorry?", a.Text)
	assert.Equal(t, Options{Delay: DefaultDelay, Presence: PresenceComposing}, a.Options)

	assert.Equal(t, 3*time.Second, FallbackAction("x", 3*time.Second).Options.Delay)
}
