package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/flowbridge/internal/api/router"
	"github.com/wolfman30/flowbridge/internal/app/bootstrap"
	"github.com/wolfman30/flowbridge/internal/bridge"
	appconfig "github.com/wolfman30/flowbridge/internal/config"
	"github.com/wolfman30/flowbridge/internal/flowengine"
	"github.com/wolfman30/flowbridge/internal/http/handlers"
	observemetrics "github.com/wolfman30/flowbridge/internal/observability/metrics"
	"github.com/wolfman30/flowbridge/internal/relay"
	"github.com/wolfman30/flowbridge/internal/sessions"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting flowbridge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"instance", cfg.FlowInstance,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, metrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	pool, err := bootstrap.BuildPgxPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	transport, err := bootstrap.BuildTransport(cfg, logger)
	if err != nil {
		logger.Error("failed to build messaging transport", "error", err)
		os.Exit(1)
	}
	logger.Info("messaging transport ready", "provider", transport.Provider)

	engine := flowengine.New(flowengine.Config{
		Timeout: cfg.FlowEngineTimeout,
		Logger:  logger,
		Metrics: metrics,
	})
	store := sessions.NewStore(bootstrap.BuildRepository(redisClient, logger), logger)
	manager := sessions.NewManager(cfg.FlowInstance, store, engine, logger)
	flowBridge := bridge.New(bridge.Config{
		Manager:    manager,
		Engine:     engine,
		Dispatcher: relay.New(transport.Outbound, logger, metrics),
		Notifier:   bootstrap.BuildNotifier(pool, logger),
		Logger:     logger,
		Metrics:    metrics,
	})

	routerCfg := &router.Config{
		Logger:               logger,
		Bridge:               bridge.NewHandler(flowBridge, registry, logger),
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:      cfg.AdminJWTSecret,
		AllowUnauthenticated: allowUnauthenticated(cfg),
	}
	if routerCfg.AdminAuthSecret == "" {
		if routerCfg.AllowUnauthenticated {
			logger.Warn("ADMIN_JWT_SECRET not set; control routes are unauthenticated")
		} else {
			logger.Warn("ADMIN_JWT_SECRET not set; control routes disabled")
		}
	}
	if transport.Client != nil {
		webhookCfg := handlers.TelnyxWebhookConfig{
			Verifier: transport.Client,
			Bridge:   flowBridge,
			Logger:   logger,
			Metrics:  metrics,
		}
		if processed := bootstrap.BuildProcessedStore(pool); processed != nil {
			webhookCfg.Processed = processed
		}
		routerCfg.TelnyxWebhooks = handlers.NewTelnyxWebhookHandler(webhookCfg)
	}
	r := router.New(routerCfg)

	if deliverer := bootstrap.BuildDeliverer(pool, cfg, logger); deliverer != nil {
		logger.Info("event delivery enabled", "url", cfg.EventWebhookURL)
		go deliverer.Start(ctx)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (*prometheus.Registry, *observemetrics.BridgeMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, observemetrics.NewBridgeMetrics(registry)
}

func allowUnauthenticated(cfg *appconfig.Config) bool {
	return !strings.EqualFold(strings.TrimSpace(cfg.Env), "production")
}
