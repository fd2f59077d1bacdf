package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	httpadapter "github.com/kirillkom/permit-query-assistant/internal/adapters/http"
	"github.com/kirillkom/permit-query-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-query-assistant/internal/config"
	"github.com/kirillkom/permit-query-assistant/internal/observability/logging"
	"github.com/kirillkom/permit-query-assistant/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.NewLogger(cfg.ServiceName+"-api", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:              logger,
		EmbeddingCacheTotal: httpMetrics.EmbeddingCacheTotal(),
	})
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer app.Close()

	opts := []httpadapter.RouterOption{
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(httpMetrics),
	}
	if cfg.IngestMode == "queue" {
		queue, err := app.OpenQueue()
		if err != nil {
			logger.Fatal("queue_init_failed", zap.Error(err))
		}
		opts = append(opts, httpadapter.WithQueue(queue))
	}
	for _, check := range app.Checks {
		opts = append(opts, httpadapter.WithReadinessCheck(check.Name, check.Ping))
	}

	router := httpadapter.NewRouter(cfg, app.QueryUC, app.IngestUC, opts...).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Duration(cfg.ChatTimeoutSeconds+30) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", zap.String("addr", server.Addr), zap.String("ingest_mode", cfg.IngestMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_server_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", zap.Error(err))
	}
}
