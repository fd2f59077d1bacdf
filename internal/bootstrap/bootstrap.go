package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kirillkom/permit-query-assistant/internal/config"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
	"github.com/kirillkom/permit-query-assistant/internal/core/usecase"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/resilience"
)

// Check is a named dependency probe used by readiness endpoints and the CLI.
type Check struct {
	Name string
	Ping func(context.Context) error
}

type Options struct {
	Logger *zap.Logger
	// EmbeddingCacheTotal receives embedding cache hit/miss counts; nil
	// disables the metric.
	EmbeddingCacheTotal *prometheus.CounterVec
}

type App struct {
	Config config.Config
	Logger *zap.Logger

	Store    ports.DocumentStore
	Embedder ports.Embedder
	Chat     ports.ChatBackend
	QueryUC  *usecase.QueryPipeline
	IngestUC *usecase.IngestUseCase
	Checks   []Check

	executor *resilience.Executor
	closers  []func()
}

// New builds every collaborator selected by cfg. Nothing is started; the
// caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		executor: resilience.NewExecutor(resilienceConfig(cfg), logger),
	}

	if err := app.buildStore(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("init document store: %w", err)
	}
	if err := app.buildEmbedder(opts.EmbeddingCacheTotal); err != nil {
		app.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	if err := app.buildChat(); err != nil {
		app.Close()
		return nil, fmt.Errorf("init chat backend: %w", err)
	}

	retriever := usecase.NewRetriever(app.Embedder, app.Store)
	composer := usecase.NewAnswerComposer(app.Chat, usecase.WithContextBudget(cfg.RAGContextBudget))
	app.QueryUC = usecase.NewQueryPipeline(retriever, composer,
		usecase.WithAnswerCache(app.Store, cfg.AnswerCacheSize),
		usecase.WithLogger(logger),
	)
	app.IngestUC = usecase.NewIngestUseCase(app.Embedder, app.Store, logger)

	logger.Info("bootstrap_complete",
		zap.String("store", cfg.StoreProvider),
		zap.String("metric", cfg.StoreMetric),
		zap.String("embedding", cfg.EmbeddingProvider),
		zap.String("embedding_cache", cfg.EmbeddingCache),
		zap.String("chat", cfg.ChatProvider),
	)
	return app, nil
}

// OpenQueue connects to NATS with the app's resilience executor. The
// connection is closed together with the App.
func (a *App) OpenQueue() (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: a.executor,
		Logger:             a.Logger.Named("nats"),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	a.addCheck("queue", queue.Ping)
	a.onClose(queue.Close)
	return queue, nil
}

func (a *App) addCheck(name string, ping func(context.Context) error) {
	a.Checks = append(a.Checks, Check{Name: name, Ping: ping})
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
