package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/flowbridge/internal/bridge"
	"github.com/wolfman30/flowbridge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/flowbridge/internal/http/middleware"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Bridge         *bridge.Handler
	TelnyxWebhooks *handlers.TelnyxWebhookHandler
	MetricsHandler http.Handler

	// AdminAuthSecret guards /bridge. When empty the routes are only mounted
	// with AllowUnauthenticated set.
	AdminAuthSecret      string
	AllowUnauthenticated bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.TelnyxWebhooks != nil {
			public.Post("/webhooks/telnyx/messages", cfg.TelnyxWebhooks.HandleMessages)
		}
	})

	if cfg.Bridge != nil {
		switch {
		case cfg.AdminAuthSecret != "":
			r.Route("/bridge", func(control chi.Router) {
				control.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
				control.Mount("/", cfg.Bridge.Routes())
			})
		case cfg.AllowUnauthenticated:
			r.Mount("/bridge", cfg.Bridge.Routes())
		}
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
