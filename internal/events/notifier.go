package events

import (
	"context"

	"github.com/wolfman30/flowbridge/pkg/logging"
)

// Notifier publishes flow events to external subscribers.
type Notifier interface {
	Notify(ctx context.Context, aggregate string, evt Event) error
}

// OutboxNotifier writes events to the outbox for the Deliverer to pick up.
type OutboxNotifier struct {
	store  *OutboxStore
	logger *logging.Logger
}

func NewOutboxNotifier(store *OutboxStore, logger *logging.Logger) *OutboxNotifier {
	if store == nil {
		panic("events: outbox store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxNotifier{store: store, logger: logger}
}

func (n *OutboxNotifier) Notify(ctx context.Context, aggregate string, evt Event) error {
	env, err := n.store.Append(ctx, aggregate, evt)
	if err != nil {
		return err
	}
	n.logger.Debug("event queued", "event_id", env.ID, "type", env.Type, "aggregate", aggregate, "correlation_id", env.CorrelationID)
	return nil
}

// LogNotifier only logs events. It is used when no database is configured.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, aggregate string, evt Event) error {
	env, err := Seal(ctx, aggregate, evt)
	if err != nil {
		return err
	}
	n.logger.Info("flow event", "type", env.Type, "aggregate", aggregate, "correlation_id", env.CorrelationID, "data", string(env.Data))
	return nil
}
