package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// Validate checks provider names and requires secrets only for the providers
// that use them.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.EmbeddingProvider {
	case "hashing":
		check(c.EmbeddingDimension > 0, "embedding_dimension must be positive for the hashing embedder")
	case "openai", "ollama":
		check(strings.TrimSpace(c.EmbeddingModel) != "", "embedding_model_name is required for the %s embedder", c.EmbeddingProvider)
		if c.EmbeddingProvider == "openai" {
			check(c.ChatAPIKey != "", "chat_api_key is required for the openai embedder")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedding_provider %q", c.EmbeddingProvider))
	}

	switch c.EmbeddingCache {
	case "", "none":
	case "bolt":
		check(c.EmbeddingCachePath != "", "embedding_cache_path is required for the bolt cache")
	case "redis":
		check(len(c.RedisAddrs) > 0, "redis_addrs is required for the redis cache")
	default:
		errs = append(errs, fmt.Errorf("unknown embedding_cache %q", c.EmbeddingCache))
	}

	switch c.ChatProvider {
	case "scripted":
	case "openai":
		check(c.ChatAPIKey != "", "chat_api_key is required for the openai chat backend")
		check(c.ChatModel != "", "chat_model is required for the openai chat backend")
	case "ollama":
		check(c.ChatModel != "", "chat_model is required for the ollama chat backend")
	default:
		errs = append(errs, fmt.Errorf("unknown chat_provider %q", c.ChatProvider))
	}
	check(c.ChatTemperature >= 0 && c.ChatTemperature <= 2, "chat_temperature must be within [0, 2], got %g", c.ChatTemperature)
	check(c.ChatRetryAttempts > 0, "chat_retry_attempts must be positive, got %d", c.ChatRetryAttempts)

	metric, err := domain.ParseMetric(c.StoreMetric)
	if err != nil {
		errs = append(errs, err)
	}
	switch c.StoreProvider {
	case "memory":
	case "postgres":
		check(c.StoreConnection != "", "store_connection is required for the postgres store")
		check(c.PostgresScoring == "database" || c.PostgresScoring == "application",
			"postgres_scoring must be database or application, got %q", c.PostgresScoring)
	case "qdrant":
		check(c.QdrantURL != "", "qdrant_url is required for the qdrant store")
	case "chromem":
		check(metric == domain.MetricCosine, "the chromem store supports only cosine similarity")
	default:
		errs = append(errs, fmt.Errorf("unknown store_provider %q", c.StoreProvider))
	}

	check(c.IngestMode == "inline" || c.IngestMode == "queue", "ingest_mode must be inline or queue, got %q", c.IngestMode)
	check(c.RAGTopK > 0, "rag_top_k must be positive, got %d", c.RAGTopK)
	return errors.Join(errs...)
}
