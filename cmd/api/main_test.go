package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/wolfman30/flowbridge/internal/config"
)

func TestSetupMetricsExposesBridgeMetrics(t *testing.T) {
	registry, metrics := setupMetrics()
	if registry == nil || metrics == nil {
		t.Fatalf("expected non-nil registry and metrics")
	}

	metrics.ObserveInbound("message.received", "ok")
	metrics.ObserveTurn("created")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"flowbridge_messaging_inbound_webhook_total", "flowbridge_bridge_turns_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s to be exported", name)
		}
	}
}

func TestAllowUnauthenticated(t *testing.T) {
	cases := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  false,
		" Production": false,
	}
	for env, want := range cases {
		if got := allowUnauthenticated(&appconfig.Config{Env: env}); got != want {
			t.Fatalf("env %q: expected %v, got %v", env, want, got)
		}
	}
}
