package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kirillkom/permit-query-assistant/internal/config"
	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/embcache"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/kv/bolt"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/kv/redis"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/llm/hashing"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/llm/scripted"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/store/chromem"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/store/memory"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/store/postgres"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/store/qdrant"
)

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.ResilienceRetryAttempts,
			InitialBackoff: time.Duration(cfg.ResilienceRetryBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.ResilienceRetryMaxBackoff) * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.ResilienceBreakerEnabled,
			MinRequests:      uint32(max(cfg.ResilienceBreakerMinCalls, 0)),
			FailureRatio:     cfg.ResilienceBreakerRatio,
			OpenTimeout:      time.Duration(cfg.ResilienceBreakerOpenSecs) * time.Second,
			HalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfCalls, 0)),
		},
	}
}

// chatResilienceConfig shares the breaker policy; chat makes
// ChatRetryAttempts attempts, one by default.
func chatResilienceConfig(cfg config.Config) resilience.Config {
	rc := resilienceConfig(cfg)
	rc.Retry.MaxAttempts = cfg.ChatRetryAttempts
	return rc
}

// buildStore wires the configured backend. Remote stores go through the
// resilience decorator; in-process stores stay bare so they keep exposing
// their version counter to the answer cache.
func (a *App) buildStore(ctx context.Context) error {
	cfg := a.Config
	metric, err := domain.ParseMetric(cfg.StoreMetric)
	if err != nil {
		return err
	}

	switch cfg.StoreProvider {
	case "memory":
		a.Store = memory.New(metric)
	case "chromem":
		store, err := chromem.New(chromem.Config{
			Path:      cfg.ChromemPath,
			Compress:  cfg.ChromemCompress,
			Dimension: a.hashingDimension(),
		}, metric)
		if err != nil {
			return err
		}
		a.Store = store
	case "postgres":
		scoring, err := postgres.ParseScoring(cfg.PostgresScoring)
		if err != nil {
			return err
		}
		db, err := postgres.OpenDB(cfg.StoreConnection)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() { _ = db.Close() })
		store := postgres.New(db, metric, scoring)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.Store = resilience.NewStore(store, a.executor, "store.postgres")
	case "qdrant":
		store := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAPIKey, metric, 30*time.Second)
		a.Store = resilience.NewStore(store, a.executor, "store.qdrant")
	default:
		return fmt.Errorf("unknown store provider %q", cfg.StoreProvider)
	}
	a.addCheck("store", a.Store.Ping)
	return nil
}

// hashingDimension lets chromem validate vectors before the first upsert when
// the dimension is known from configuration.
func (a *App) hashingDimension() int {
	if a.Config.EmbeddingProvider == "hashing" {
		return a.Config.EmbeddingDimension
	}
	return 0
}

func (a *App) buildEmbedder(cacheTotal *prometheus.CounterVec) error {
	cfg := a.Config
	var (
		embedder ports.Embedder
		model    string
	)
	switch cfg.EmbeddingProvider {
	case "hashing":
		embedder = hashing.NewEmbedder(cfg.EmbeddingDimension, cfg.EmbeddingMaxTokens)
		model = "hashing-" + strconv.Itoa(cfg.EmbeddingDimension)
	case "openai":
		embedder = resilience.NewEmbedder(openai.NewEmbedder(openai.Config{
			APIKey:    cfg.ChatAPIKey,
			BaseURL:   cfg.ChatBaseURL,
			Model:     cfg.EmbeddingModel,
			Timeout:   time.Duration(cfg.ChatTimeoutSeconds) * time.Second,
			MaxTokens: cfg.EmbeddingMaxTokens,
		}), a.executor, "embed.openai")
		model = "openai-" + cfg.EmbeddingModel
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.ChatModel, cfg.EmbeddingModel, time.Duration(cfg.ChatTimeoutSeconds)*time.Second)
		embedder = resilience.NewEmbedder(ollama.NewEmbedder(client, cfg.EmbeddingMaxTokens), a.executor, "embed.ollama")
		model = "ollama-" + cfg.EmbeddingModel
		a.addCheck("embedding", client.Ping)
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	kv, err := a.buildEmbeddingCacheStore()
	if err != nil {
		return err
	}
	if kv != nil {
		embedder = embcache.New(embedder, kv, model, cacheTotal, a.Logger.Named("embcache"))
	}
	a.Embedder = embedder
	return nil
}

func (a *App) buildEmbeddingCacheStore() (ports.KeyValueStore, error) {
	cfg := a.Config
	switch cfg.EmbeddingCache {
	case "", "none":
		return nil, nil
	case "bolt":
		store, err := bolt.Open(cfg.EmbeddingCachePath)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		a.onClose(func() { _ = store.Close() })
		return store, nil
	case "redis":
		store, err := redis.NewStore(redis.Config{
			Addrs:    cfg.RedisAddrs,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.RedisTTLSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect embedding cache: %w", err)
		}
		a.onClose(store.Close)
		a.addCheck("embedding_cache", store.Ping)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown embedding cache %q", cfg.EmbeddingCache)
	}
}

func (a *App) buildChat() error {
	cfg := a.Config
	timeout := time.Duration(cfg.ChatTimeoutSeconds) * time.Second
	chatExecutor := resilience.NewExecutor(chatResilienceConfig(cfg), a.Logger)
	switch cfg.ChatProvider {
	case "scripted":
		script := scripted.DefaultScript()
		if cfg.ChatScriptPath != "" {
			loaded, err := scripted.LoadScript(cfg.ChatScriptPath)
			if err != nil {
				return err
			}
			script = loaded
		}
		a.Chat = scripted.New(script)
	case "openai":
		backend := openai.NewChatBackend(openai.Config{
			APIKey:      cfg.ChatAPIKey,
			BaseURL:     cfg.ChatBaseURL,
			Model:       cfg.ChatModel,
			Timeout:     timeout,
			MaxTokens:   cfg.ChatMaxTokens,
			Temperature: float32(cfg.ChatTemperature),
		})
		a.Chat = resilience.NewChatBackend(backend, chatExecutor, "chat.openai")
		a.addCheck("chat", backend.Ping)
	case "ollama":
		baseURL := cfg.ChatBaseURL
		if baseURL == "" {
			baseURL = cfg.OllamaURL
		}
		client := ollama.New(baseURL, cfg.ChatModel, cfg.EmbeddingModel, timeout)
		backend := ollama.NewChatBackend(client, cfg.ChatTemperature, cfg.ChatMaxTokens)
		a.Chat = resilience.NewChatBackend(backend, chatExecutor, "chat.ollama")
		a.addCheck("chat", client.Ping)
	default:
		return fmt.Errorf("unknown chat provider %q", cfg.ChatProvider)
	}
	a.Logger.Debug("chat_backend_ready", zap.String("provider", cfg.ChatProvider), zap.String("model", cfg.ChatModel))
	return nil
}
