package relay

import (
	"context"
	"fmt"

	"github.com/wolfman30/flowbridge/internal/observability/metrics"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// Relay turns flow engine replies into paced transport sends.
type Relay struct {
	transport Transport
	logger    *logging.Logger
	metrics   *metrics.BridgeMetrics
}

// New creates a relay over transport.
func New(transport Transport, logger *logging.Logger, m *metrics.BridgeMetrics) *Relay {
	if transport == nil {
		panic("relay: transport required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{transport: transport, logger: logger, metrics: m}
}

// DispatchActions sends already rendered actions on a detached goroutine.
// It returns immediately; failures are only logged. The goroutine is not
// cancelled when ctx is.
func (r *Relay) DispatchActions(ctx context.Context, remoteJID string, actions []Action) {
	if len(actions) == 0 {
		return
	}
	batch := make([]Action, len(actions))
	copy(batch, actions)
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := r.Send(detached, remoteJID, batch); err != nil {
			r.logger.Error("relay batch halted", "remote_jid", remoteJID, "error", err)
		}
	}()
}

// Send issues actions strictly in order, waiting for each send to finish
// before the next. The first failure stops the batch.
func (r *Relay) Send(ctx context.Context, remoteJID string, actions []Action) error {
	to := PartnerNumber(remoteJID)
	for i, action := range actions {
		var err error
		switch action.Kind {
		case ActionText:
			err = r.transport.SendText(ctx, to, action.Options, action.Text)
		case ActionMedia:
			err = r.transport.SendMedia(ctx, to, action.Options, action.Media)
		case ActionVoice:
			err = r.transport.SendVoice(ctx, to, action.Options, action.Media.URL)
		default:
			err = fmt.Errorf("unknown action kind %q", action.Kind)
		}
		r.metrics.ObserveRelaySend(string(action.Kind), err == nil)
		if err != nil {
			return fmt.Errorf("relay: action %d/%d (%s): %w", i+1, len(actions), action.Kind, err)
		}
		r.logger.Debug("relay sent", "to", to, "kind", action.Kind, "delay_ms", action.Options.Delay.Milliseconds())
	}
	return nil
}
