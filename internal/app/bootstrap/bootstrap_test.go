package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wolfman30/flowbridge/internal/config"
	"github.com/wolfman30/flowbridge/internal/messaging"
	"github.com/wolfman30/flowbridge/internal/messaging/telnyxclient"
	"github.com/wolfman30/flowbridge/internal/sessions"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
	if client := BuildRedisClient(context.Background(), nil, nil, false); client != nil {
		t.Fatalf("expected nil client without config")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, nil, true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	mr.Close()
	if got := BuildRedisClient(context.Background(), cfg, nil, true); got != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildRepository(t *testing.T) {
	if _, ok := BuildRepository(nil, nil).(*sessions.MemoryRepository); !ok {
		t.Fatalf("expected memory repository without redis")
	}

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	defer client.Close()
	if _, ok := BuildRepository(client, nil).(*sessions.RedisRepository); !ok {
		t.Fatalf("expected redis repository")
	}
}

func TestBuildPgxPoolDisabled(t *testing.T) {
	pool, err := BuildPgxPool(context.Background(), &appconfig.Config{}, nil)
	if err != nil || pool != nil {
		t.Fatalf("expected nil pool and nil error, got %v %v", pool, err)
	}
}

func TestBuildPgxPoolRejectsBadURL(t *testing.T) {
	_, err := BuildPgxPool(context.Background(), &appconfig.Config{DatabaseURL: "postgres://%zz"}, nil)
	if err == nil {
		t.Fatalf("expected error for malformed database url")
	}
}

func TestBuildTransportWithoutCredentials(t *testing.T) {
	tr, err := BuildTransport(&appconfig.Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Provider != "log" || tr.Client != nil {
		t.Fatalf("expected log transport, got %+v", tr)
	}
	if _, ok := tr.Outbound.(*messaging.LogTransport); !ok {
		t.Fatalf("expected *messaging.LogTransport, got %T", tr.Outbound)
	}
}

func TestBuildTransportRequiresSender(t *testing.T) {
	if _, err := BuildTransport(&appconfig.Config{TelnyxAPIKey: "key"}, nil); err == nil {
		t.Fatalf("expected error without from number or profile")
	}
}

func TestBuildTransportTelnyx(t *testing.T) {
	tr, err := BuildTransport(&appconfig.Config{
		TelnyxAPIKey:        "key",
		TelnyxFromNumber:    "+15550001111",
		TelnyxWebhookSecret: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Provider != "telnyx" || tr.Client == nil {
		t.Fatalf("expected telnyx transport, got %+v", tr)
	}
	if _, ok := tr.Outbound.(*messaging.TelnyxTransport); !ok {
		t.Fatalf("expected *messaging.TelnyxTransport, got %T", tr.Outbound)
	}
}

func TestTelnyxSendsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := telnyxConfig(&appconfig.Config{TelnyxAPIKey: "key"}, nil)
	cfg.BaseURL = server.URL
	client, err := telnyxclient.New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.SendMessage(context.Background(), telnyxclient.SendMessageRequest{From: "+1", To: "+2", Body: "x"}); err == nil {
		t.Fatalf("expected error from failing upstream")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestBuildEventsWithoutDatabase(t *testing.T) {
	cfg := &appconfig.Config{EventWebhookURL: "https://hooks.example/flow"}
	if d := BuildDeliverer(nil, cfg, nil); d != nil {
		t.Fatalf("expected nil deliverer without database")
	}
	if ps := BuildProcessedStore(nil); ps != nil {
		t.Fatalf("expected nil processed store without database")
	}
	if n := BuildNotifier(nil, nil); n == nil {
		t.Fatalf("expected log notifier")
	}
}
