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

	"github.com/kirillkom/permit-query-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-query-assistant/internal/config"
	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/observability/logging"
	"github.com/kirillkom/permit-query-assistant/internal/observability/metrics"
)

const batchTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	service := cfg.ServiceName + "-worker"
	logger, err := logging.NewLogger(service, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:              logger,
		EmbeddingCacheTotal: workerMetrics.EmbeddingCacheTotal(),
	})
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer app.Close()

	queue, err := app.OpenQueue()
	if err != nil {
		logger.Fatal("queue_init_failed", zap.Error(err))
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", zap.String("subject", cfg.NATSSubject))
	err = queue.SubscribeDocuments(ctx, func(handlerCtx context.Context, drafts []domain.DocumentDraft) error {
		batchCtx, cancel := context.WithTimeout(handlerCtx, batchTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartBatch()
		ids, err := app.IngestUC.Ingest(batchCtx, drafts)
		workerMetrics.FinishBatch(service, len(ids), time.Since(start), err)
		if err != nil {
			return err
		}
		logger.Info("batch_ingested", zap.Int("documents", len(ids)), zap.Duration("duration", time.Since(start)))
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", zap.Error(err))
	}
}
