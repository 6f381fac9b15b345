package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a versioned flow notification.
type Event interface {
	EventType() string
}

// Envelope is what subscribers receive: the event payload plus delivery
// metadata. Aggregate groups the events of one flow instance ("flow:<instance>").
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

var (
	errMissingAggregate = errors.New("events: aggregate is required")
	errNilEvent         = errors.New("events: event required")
	errMissingType      = errors.New("events: event type missing")

	clock = time.Now
)

type correlationKey struct{}

// WithCorrelationID tags ctx so events emitted under it carry id, typically
// the HTTP request id or the transport's webhook event id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Seal validates evt and wraps it in a fresh envelope.
func Seal(ctx context.Context, aggregate string, evt Event) (Envelope, error) {
	aggregate = strings.TrimSpace(aggregate)
	if aggregate == "" {
		return Envelope{}, errMissingAggregate
	}
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, errMissingType
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	return Envelope{
		ID:            uuid.New(),
		Type:          eventType,
		Aggregate:     aggregate,
		OccurredAt:    clock().UTC(),
		CorrelationID: CorrelationID(ctx),
		Data:          data,
	}, nil
}
