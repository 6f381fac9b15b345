package bridge

import "strings"

// InboundMessage is the chat-style inbound message event.
type InboundMessage struct {
	Key      MessageKey     `json:"key"`
	PushName string         `json:"pushName"`
	Message  MessageContent `json:"message"`
}

// MessageKey identifies the conversation and direction of a message.
type MessageKey struct {
	ID        string `json:"id,omitempty"`
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
}

// MessageContent carries the message bodies the bridge understands.
type MessageContent struct {
	Conversation        string        `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedText `json:"extendedTextMessage,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

// Content returns the plain conversation text, falling back to the extended
// text body. It is empty when neither carries text.
func (m InboundMessage) Content() string {
	if strings.TrimSpace(m.Message.Conversation) != "" {
		return m.Message.Conversation
	}
	if ext := m.Message.ExtendedTextMessage; ext != nil && strings.TrimSpace(ext.Text) != "" {
		return ext.Text
	}
	return ""
}

// TextMessage builds an inbound event carrying plain text.
func TextMessage(remoteJID, pushName, text string) InboundMessage {
	return InboundMessage{
		Key:      MessageKey{RemoteJID: remoteJID},
		PushName: pushName,
		Message:  MessageContent{Conversation: text},
	}
}
