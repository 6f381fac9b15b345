package flowengine

// Message types emitted by the flow engine.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageVideo = "video"
	MessageAudio = "audio"
)

// InputChoice is the input kind rendered as a numbered-style menu.
const InputChoice = "choice input"

// Reply is the sendMessage response payload.
type Reply struct {
	SessionID         string             `json:"sessionId,omitempty"`
	Messages          []Message          `json:"messages"`
	Input             *Input             `json:"input,omitempty"`
	ClientSideActions []ClientSideAction `json:"clientSideActions,omitempty"`
}

// Message is one outbound bubble.
type Message struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Content MessageContent `json:"content"`
}

// MessageContent carries rich text for text bubbles and a URL for media bubbles.
type MessageContent struct {
	RichText []RichTextBlock `json:"richText,omitempty"`
	URL      string          `json:"url,omitempty"`
}

// RichTextBlock is a paragraph of inline elements.
type RichTextBlock struct {
	Type     string    `json:"type,omitempty"`
	Children []Element `json:"children"`
}

// Element is an inline rich-text node. A non-empty URL marks a hyperlink whose
// label is the text of its first child.
type Element struct {
	Text      string    `json:"text,omitempty"`
	Bold      bool      `json:"bold,omitempty"`
	Italic    bool      `json:"italic,omitempty"`
	Underline bool      `json:"underline,omitempty"`
	URL       string    `json:"url,omitempty"`
	Children  []Element `json:"children,omitempty"`
}

// Input is the prompt the engine expects the partner to answer.
type Input struct {
	ID    string      `json:"id,omitempty"`
	Type  string      `json:"type"`
	Items []InputItem `json:"items,omitempty"`
}

// InputItem is one selectable choice.
type InputItem struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

// ClientSideAction is a timing hint bound to the block that produced a bubble.
type ClientSideAction struct {
	LastBubbleBlockID string      `json:"lastBubbleBlockId,omitempty"`
	Wait              *WaitAction `json:"wait,omitempty"`
}

// WaitAction asks the client to pause before showing the bubble.
type WaitAction struct {
	SecondsToWaitFor float64 `json:"secondsToWaitFor"`
}

// WaitSeconds returns the wait hint for the given block, or 0 when none matches.
// The first action bound to the block wins.
func (r *Reply) WaitSeconds(blockID string) float64 {
	if r == nil {
		return 0
	}
	for _, action := range r.ClientSideActions {
		if action.LastBubbleBlockID == blockID {
			if action.Wait == nil {
				return 0
			}
			return action.Wait.SecondsToWaitFor
		}
	}
	return 0
}

// Empty reports whether the reply carries nothing to relay.
func (r *Reply) Empty() bool {
	return r == nil || (len(r.Messages) == 0 && r.Input == nil)
}
