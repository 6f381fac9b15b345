package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/flowbridge/internal/bridge"
	"github.com/wolfman30/flowbridge/internal/messaging"
	"github.com/wolfman30/flowbridge/internal/messaging/telnyxclient"
	observemetrics "github.com/wolfman30/flowbridge/internal/observability/metrics"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

const telnyxProvider = "telnyx"

type signatureVerifier interface {
	VerifyWebhookSignature(timestamp, signature string, payload []byte) error
}

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type inboundBridge interface {
	HandleInbound(ctx context.Context, msg bridge.InboundMessage) (bridge.Turn, error)
}

// TelnyxWebhookHandler turns inbound Telnyx message webhooks into bridge turns.
type TelnyxWebhookHandler struct {
	verifier  signatureVerifier
	processed processedTracker
	bridge    inboundBridge
	logger    *logging.Logger
	metrics   *observemetrics.BridgeMetrics
}

type TelnyxWebhookConfig struct {
	Verifier  signatureVerifier
	Processed processedTracker
	Bridge    inboundBridge
	Logger    *logging.Logger
	Metrics   *observemetrics.BridgeMetrics
}

func NewTelnyxWebhookHandler(cfg TelnyxWebhookConfig) *TelnyxWebhookHandler {
	if cfg.Bridge == nil {
		panic("handlers: bridge required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &TelnyxWebhookHandler{
		verifier:  cfg.Verifier,
		processed: cfg.Processed,
		bridge:    cfg.Bridge,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// HandleMessages processes Telnyx message webhooks. Only message.received
// starts a turn; other event types are acknowledged and dropped.
func (h *TelnyxWebhookHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.Error(w, "telnyx client not configured", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.verifier.VerifyWebhookSignature(r.Header.Get("Telnyx-Timestamp"), r.Header.Get("Telnyx-Signature"), body); err != nil {
		h.logger.Warn("invalid telnyx webhook signature", "error", err)
		h.metrics.ObserveInbound("unknown", "unauthorized")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	evt, err := telnyxclient.ParseEvent(body)
	if err != nil {
		h.metrics.ObserveInbound("unknown", "invalid")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if h.processed != nil {
		if processed, err := h.processed.AlreadyProcessed(r.Context(), telnyxProvider, evt.ID); err != nil {
			h.logger.Error("processed lookup failed", "error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		} else if processed {
			h.metrics.ObserveInbound(evt.EventType, "duplicate")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if evt.EventType != "message.received" {
		h.metrics.ObserveInbound(evt.EventType, "ignored")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.handleInbound(r.Context(), evt); err != nil {
		h.logger.Error("telnyx webhook handling failed", "error", err, "event_id", evt.ID)
		h.metrics.ObserveInbound(evt.EventType, "failed")
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveInbound(evt.EventType, "ok")
	if h.processed != nil {
		if _, err := h.processed.MarkProcessed(r.Context(), telnyxProvider, evt.ID); err != nil {
			h.logger.Error("failed to mark telnyx event processed", "error", err, "event_id", evt.ID)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *TelnyxWebhookHandler) handleInbound(ctx context.Context, evt telnyxclient.Event) error {
	payload, err := evt.Message()
	if err != nil {
		return err
	}
	if payload.Direction != "" && !strings.EqualFold(payload.Direction, "inbound") {
		return nil
	}
	remoteJID := messaging.RemoteJID(payload.FromNumber())
	if remoteJID == "" {
		return fmt.Errorf("missing sender number in event %s", evt.ID)
	}

	msg := bridge.TextMessage(remoteJID, "", payload.Text)
	msg.Key.ID = payload.ID
	turn, err := h.bridge.HandleInbound(ctx, msg)
	if err != nil {
		return err
	}
	h.logger.Info("telnyx inbound handled", "remote_jid", remoteJID, "decision", turn.Decision, "actions", turn.Actions)
	return nil
}
