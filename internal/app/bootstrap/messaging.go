package bootstrap

import (
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/flowbridge/internal/config"
	"github.com/wolfman30/flowbridge/internal/messaging"
	"github.com/wolfman30/flowbridge/internal/messaging/telnyxclient"
	"github.com/wolfman30/flowbridge/internal/relay"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// Transport is the outbound transport together with the webhook signature
// verifier of the same account. Client is nil for the log-only transport.
type Transport struct {
	Outbound relay.Transport
	Client   *telnyxclient.Client
	Provider string
}

// BuildTransport selects the outbound messaging transport. Without Telnyx
// credentials, sends are only logged.
func BuildTransport(cfg *appconfig.Config, logger *logging.Logger) (Transport, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.TelnyxAPIKey) == "" {
		logger.Warn("telnyx not configured; outbound messages will only be logged")
		return Transport{Outbound: messaging.NewLogTransport(logger), Provider: "log"}, nil
	}
	if strings.TrimSpace(cfg.TelnyxFromNumber) == "" && strings.TrimSpace(cfg.TelnyxMessagingProfileID) == "" {
		return Transport{}, fmt.Errorf("bootstrap: TELNYX_FROM_NUMBER or TELNYX_MESSAGING_PROFILE_ID required")
	}
	client, err := telnyxclient.New(telnyxConfig(cfg, logger))
	if err != nil {
		return Transport{}, fmt.Errorf("bootstrap: telnyx client: %w", err)
	}
	return Transport{
		Outbound: messaging.NewTelnyxTransport(client, cfg.TelnyxFromNumber, cfg.TelnyxMessagingProfileID, logger),
		Client:   client,
		Provider: "telnyx",
	}, nil
}

// telnyxConfig builds the client settings for relay sends. Relay sends are
// never retried: a timed out request may already have been delivered.
func telnyxConfig(cfg *appconfig.Config, logger *logging.Logger) telnyxclient.Config {
	return telnyxclient.Config{
		APIKey:        cfg.TelnyxAPIKey,
		WebhookSecret: cfg.TelnyxWebhookSecret,
		MaxRetries:    0,
		Logger:        logger,
	}
}
