package telnyxclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SendMessageRequest describes an outbound SMS/MMS payload.
type SendMessageRequest struct {
	From               string
	To                 string
	Body               string
	MediaURLs          []string
	MessagingProfileID string
}

func (r SendMessageRequest) validate() error {
	if strings.TrimSpace(r.To) == "" {
		return errors.New("telnyxclient: to number required")
	}
	if strings.TrimSpace(r.From) == "" && strings.TrimSpace(r.MessagingProfileID) == "" {
		return errors.New("telnyxclient: from number or messaging profile required")
	}
	if strings.TrimSpace(r.Body) == "" && len(r.MediaURLs) == 0 {
		return errors.New("telnyxclient: body or media required")
	}
	return nil
}

// MessageResponse represents the Telnyx message resource.
type MessageResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Direction string    `json:"direction"`
	Text      string    `json:"text"`
	Parts     int       `json:"parts"`
	Media     []Media   `json:"media,omitempty"`
	CreatedAt time.Time `json:"received_at"`
}

type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Event is a Telnyx webhook envelope.
type Event struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ParseEvent decodes the {"data": {...}} webhook body.
func ParseEvent(body []byte) (Event, error) {
	var wrapper struct {
		Data Event `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return Event{}, fmt.Errorf("telnyxclient: decode event: %w", err)
	}
	if wrapper.Data.ID == "" || wrapper.Data.EventType == "" {
		return Event{}, errors.New("telnyxclient: event id and type required")
	}
	return wrapper.Data, nil
}

// MessagePayload is the payload of message.* events.
type MessagePayload struct {
	ID        string  `json:"id"`
	Direction string  `json:"direction"`
	Text      string  `json:"text"`
	Media     []Media `json:"media"`
	From      struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"from"`
	To []struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"to"`
}

// Message decodes the event payload as a message.
func (e Event) Message() (MessagePayload, error) {
	var p MessagePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return MessagePayload{}, fmt.Errorf("telnyxclient: decode message payload: %w", err)
	}
	return p, nil
}

func (p MessagePayload) FromNumber() string {
	return strings.TrimSpace(p.From.PhoneNumber)
}

func (p MessagePayload) ToNumber() string {
	if len(p.To) == 0 {
		return ""
	}
	return strings.TrimSpace(p.To[0].PhoneNumber)
}
