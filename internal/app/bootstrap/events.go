package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/flowbridge/internal/config"
	"github.com/wolfman30/flowbridge/internal/events"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// BuildNotifier writes lifecycle events to the outbox when Postgres is
// available and falls back to logging them.
func BuildNotifier(pool *pgxpool.Pool, logger *logging.Logger) events.Notifier {
	if pool == nil {
		return events.NewLogNotifier(logger)
	}
	return events.NewOutboxNotifier(events.NewOutboxStore(pool), logger)
}

// BuildDeliverer returns the outbox deliverer posting to EVENT_WEBHOOK_URL,
// or nil when either the database or the webhook is not configured.
func BuildDeliverer(pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) *events.Deliverer {
	if pool == nil || cfg == nil || strings.TrimSpace(cfg.EventWebhookURL) == "" {
		return nil
	}
	webhook := events.NewWebhookDelivery(cfg.EventWebhookURL, &http.Client{Timeout: 10 * time.Second}, logger)
	return events.NewDeliverer(events.NewOutboxStore(pool), webhook, logger).WithInterval(cfg.OutboxPollInterval)
}

// BuildProcessedStore returns the webhook dedupe store, nil without Postgres.
func BuildProcessedStore(pool *pgxpool.Pool) *events.ProcessedStore {
	if pool == nil {
		return nil
	}
	return events.NewProcessedStore(pool)
}
