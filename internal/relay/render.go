package relay

import (
	"strings"
	"time"

	"github.com/wolfman30/flowbridge/internal/flowengine"
)

const (
	// DefaultDelay applies when the flow has no configured delay and the
	// engine sent no wait hint for the bubble.
	DefaultDelay = 1000 * time.Millisecond
	// ChoiceDelay paces the choice menu sent after the bubbles.
	ChoiceDelay = 1200 * time.Millisecond

	choicePrefix = "▶️ "
)

// ActionKind selects the transport primitive for an Action.
type ActionKind string

const (
	ActionText  ActionKind = "text"
	ActionMedia ActionKind = "media"
	ActionVoice ActionKind = "voice"
)

// Action is one rendered outbound send.
type Action struct {
	Kind    ActionKind
	Options Options
	Text    string
	Media   Media
}

// FallbackAction is the plain text send used for the unknown-input message.
func FallbackAction(text string, defaultDelay time.Duration) Action {
	if defaultDelay <= 0 {
		defaultDelay = DefaultDelay
	}
	return Action{
		Kind:    ActionText,
		Options: Options{Delay: defaultDelay, Presence: PresenceComposing},
		Text:    text,
	}
}

// Render converts a reply into the ordered list of sends. Messages come first
// in payload order, then the choice menu when the input is a choice prompt.
// Unknown message types are skipped.
func Render(reply *flowengine.Reply, defaultDelay time.Duration) []Action {
	if reply == nil {
		return nil
	}
	if defaultDelay <= 0 {
		defaultDelay = DefaultDelay
	}

	actions := make([]Action, 0, len(reply.Messages)+1)
	for _, msg := range reply.Messages {
		delay := defaultDelay
		if wait := reply.WaitSeconds(msg.ID); wait > 0 {
			delay = time.Duration(wait * float64(time.Second))
		}

		switch msg.Type {
		case flowengine.MessageText:
			text, linkPreview := RenderRichText(msg.Content.RichText)
			actions = append(actions, Action{
				Kind:    ActionText,
				Options: Options{Delay: delay, Presence: PresenceComposing, LinkPreview: linkPreview},
				Text:    text,
			})
		case flowengine.MessageImage, flowengine.MessageVideo:
			actions = append(actions, Action{
				Kind:    ActionMedia,
				Options: Options{Delay: delay, Presence: PresenceComposing},
				Media:   Media{Kind: MediaKind(msg.Type), URL: msg.Content.URL},
			})
		case flowengine.MessageAudio:
			actions = append(actions, Action{
				Kind:    ActionVoice,
				Options: Options{Delay: delay, Presence: PresenceRecording, VoiceEncoding: true},
				Media:   Media{URL: msg.Content.URL},
			})
		}
	}

	if reply.Input != nil && reply.Input.Type == flowengine.InputChoice {
		actions = append(actions, Action{
			Kind:    ActionText,
			Options: Options{Delay: ChoiceDelay, Presence: PresenceComposing},
			Text:    RenderChoices(reply.Input.Items),
		})
	}
	return actions
}

// RenderRichText flattens rich-text blocks into chat markup and reports
// whether a hyperlink was present. Bold, italic and underline wrap in that
// order (*, _, ~); a hyperlink replaces the element with [label](url).
func RenderRichText(blocks []flowengine.RichTextBlock) (string, bool) {
	var sb strings.Builder
	linkPreview := false
	for _, block := range blocks {
		for _, el := range block.Children {
			text := el.Text
			if el.Bold {
				text = "*" + text + "*"
			}
			if el.Italic {
				text = "_" + text + "_"
			}
			if el.Underline {
				text = "~" + text + "~"
			}
			if el.URL != "" {
				label := ""
				if len(el.Children) > 0 {
					label = el.Children[0].Text
				}
				text = "[" + label + "](" + el.URL + ")"
				linkPreview = true
			}
			sb.WriteString(text)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n"), linkPreview
}

// RenderChoices renders one "▶️ label" line per item.
func RenderChoices(items []flowengine.InputItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(choicePrefix)
		sb.WriteString(item.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
