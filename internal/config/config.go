package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultSecretsFile = ".streamlit/secrets.toml"
)

type Config struct {
	ServiceName       string `yaml:"service_name"`
	APIPort           string `yaml:"api_port"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	WorkerMetricsPort string `yaml:"worker_metrics_port"`

	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbeddingMaxTokens int    `yaml:"embedding_max_tokens"`

	EmbeddingCache     string   `yaml:"embedding_cache"`
	EmbeddingCachePath string   `yaml:"embedding_cache_path"`
	RedisAddrs         []string `yaml:"redis_addrs"`
	RedisUsername      string   `yaml:"redis_username"`
	RedisPassword      string   `yaml:"redis_password"`
	RedisDB            int      `yaml:"redis_db"`
	RedisTTLSeconds    int      `yaml:"redis_ttl_seconds"`

	ChatProvider       string  `yaml:"chat_provider"`
	ChatBaseURL        string  `yaml:"chat_base_url"`
	ChatAPIKey         string  `yaml:"chat_api_key"`
	ChatModel          string  `yaml:"chat_model"`
	ChatTimeoutSeconds int     `yaml:"chat_timeout_seconds"`
	ChatMaxTokens      int     `yaml:"chat_max_tokens"`
	ChatTemperature    float64 `yaml:"chat_temperature"`
	ChatRetryAttempts  int     `yaml:"chat_retry_attempts"`
	ChatScriptPath     string  `yaml:"chat_script_path"`

	OllamaURL string `yaml:"ollama_url"`

	StoreProvider    string `yaml:"store_provider"`
	StoreMetric      string `yaml:"store_metric"`
	StoreConnection  string `yaml:"store_connection"`
	PostgresScoring  string `yaml:"postgres_scoring"`
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	ChromemPath      string `yaml:"chromem_path"`
	ChromemCompress  bool   `yaml:"chromem_compress"`

	RAGTopK          int `yaml:"rag_top_k"`
	RAGContextBudget int `yaml:"rag_context_budget"`
	AnswerCacheSize  int `yaml:"answer_cache_size"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// IngestMode "queue" makes the API publish batches to NATS for the
	// worker; "inline" ingests in the request.
	IngestMode  string `yaml:"ingest_mode"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	APIAuthToken      string  `yaml:"api_auth_token"`
	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `yaml:"api_rate_limit_burst"`
	APIMaxInFlight    int     `yaml:"api_max_in_flight"`
	APIQueueWaitMs    int     `yaml:"api_queue_wait_ms"`
	APIMaxBodyBytes   int64   `yaml:"api_max_body_bytes"`

	ResilienceBreakerEnabled   bool    `yaml:"resilience_breaker_enabled"`
	ResilienceRetryAttempts    int     `yaml:"resilience_retry_attempts"`
	ResilienceRetryBackoffMs   int     `yaml:"resilience_retry_backoff_ms"`
	ResilienceRetryMaxBackoff  int     `yaml:"resilience_retry_max_backoff_ms"`
	ResilienceBreakerMinCalls  int     `yaml:"resilience_breaker_min_requests"`
	ResilienceBreakerRatio     float64 `yaml:"resilience_breaker_failure_ratio"`
	ResilienceBreakerOpenSecs  int     `yaml:"resilience_breaker_open_seconds"`
	ResilienceBreakerHalfCalls int     `yaml:"resilience_breaker_half_open_calls"`
}

// Defaults run fully offline: hashing embedder, scripted answers and the
// in-memory store.
func Defaults() Config {
	return Config{
		ServiceName:       "permitqa",
		APIPort:           "8080",
		LogLevel:          "info",
		LogFormat:         "json",
		WorkerMetricsPort: "9090",

		EmbeddingProvider:  "hashing",
		EmbeddingDimension: 256,
		EmbeddingMaxTokens: 8191,
		EmbeddingCache:     "none",
		EmbeddingCachePath: "./data/embeddings.db",

		ChatProvider:       "scripted",
		ChatModel:          "gpt-4o-mini",
		ChatTimeoutSeconds: 60,
		ChatMaxTokens:      512,
		ChatRetryAttempts:  1,

		OllamaURL: "http://localhost:11434",

		StoreProvider:    "memory",
		StoreMetric:      "cosine",
		PostgresScoring:  "database",
		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "permits",
		ChromemPath:      "./data/chromem",

		RAGTopK:          3,
		RAGContextBudget: 6000,
		AnswerCacheSize:  256,

		ChunkSize:    900,
		ChunkOverlap: 150,

		IngestMode:  "inline",
		NATSURL:     "nats://localhost:4222",
		NATSSubject: "permits.ingest",

		APIRateLimitRPS:   20,
		APIRateLimitBurst: 40,
		APIMaxInFlight:    32,
		APIQueueWaitMs:    250,
		APIMaxBodyBytes:   4 << 20,

		ResilienceBreakerEnabled:   true,
		ResilienceRetryAttempts:    3,
		ResilienceRetryBackoffMs:   100,
		ResilienceRetryMaxBackoff:  400,
		ResilienceBreakerMinCalls:  10,
		ResilienceBreakerRatio:     0.5,
		ResilienceBreakerOpenSecs:  30,
		ResilienceBreakerHalfCalls: 2,
	}
}

// Load resolves configuration from CONFIG_FILE and SECRETS_FILE (falling back
// to the default paths when they exist) and the environment.
func Load() (Config, error) {
	return LoadFrom(mustEnv("CONFIG_FILE", ""), mustEnv("SECRETS_FILE", ""))
}

// LoadFrom applies, in order: defaults, the YAML file, secrets.toml and
// environment overrides. Empty paths fall back to the default files, which
// may be absent.
func LoadFrom(configPath, secretsPath string) (Config, error) {
	cfg := Defaults()

	if err := applyYAML(&cfg, configPath); err != nil {
		return Config{}, err
	}
	secrets, err := LoadSecrets(secretsPath)
	if err != nil {
		return Config{}, err
	}
	secrets.apply(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = mustEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.APIPort = mustEnv("API_PORT", cfg.APIPort)
	cfg.LogLevel = mustEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = mustEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", cfg.WorkerMetricsPort)

	cfg.EmbeddingProvider = mustEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingModel = mustEnv("EMBEDDING_MODEL_NAME", cfg.EmbeddingModel)
	cfg.EmbeddingDimension = mustEnvInt("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)
	cfg.EmbeddingMaxTokens = mustEnvInt("EMBEDDING_MAX_TOKENS", cfg.EmbeddingMaxTokens)
	cfg.EmbeddingCache = mustEnv("EMBEDDING_CACHE", cfg.EmbeddingCache)
	cfg.EmbeddingCachePath = mustEnv("EMBEDDING_CACHE_PATH", cfg.EmbeddingCachePath)
	cfg.RedisAddrs = mustEnvList("REDIS_ADDRS", cfg.RedisAddrs)
	cfg.RedisUsername = mustEnv("REDIS_USERNAME", cfg.RedisUsername)
	cfg.RedisPassword = mustEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = mustEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisTTLSeconds = mustEnvInt("REDIS_TTL_SECONDS", cfg.RedisTTLSeconds)

	cfg.ChatProvider = mustEnv("CHAT_PROVIDER", cfg.ChatProvider)
	cfg.ChatBaseURL = mustEnv("CHAT_BACKEND_URL", cfg.ChatBaseURL)
	cfg.ChatAPIKey = mustEnv("CHAT_API_KEY", cfg.ChatAPIKey)
	cfg.ChatModel = mustEnv("CHAT_MODEL", cfg.ChatModel)
	cfg.ChatTimeoutSeconds = mustEnvInt("CHAT_TIMEOUT_SECONDS", cfg.ChatTimeoutSeconds)
	cfg.ChatMaxTokens = mustEnvInt("CHAT_MAX_TOKENS", cfg.ChatMaxTokens)
	cfg.ChatTemperature = mustEnvFloat("CHAT_TEMPERATURE", cfg.ChatTemperature)
	cfg.ChatRetryAttempts = mustEnvInt("CHAT_RETRY_ATTEMPTS", cfg.ChatRetryAttempts)
	cfg.ChatScriptPath = mustEnv("CHAT_SCRIPT_PATH", cfg.ChatScriptPath)

	cfg.OllamaURL = mustEnv("OLLAMA_URL", cfg.OllamaURL)

	cfg.StoreProvider = mustEnv("STORE_PROVIDER", cfg.StoreProvider)
	cfg.StoreMetric = mustEnv("STORE_METRIC", cfg.StoreMetric)
	cfg.StoreConnection = mustEnv("STORE_CONNECTION", cfg.StoreConnection)
	cfg.PostgresScoring = mustEnv("POSTGRES_SCORING", cfg.PostgresScoring)
	cfg.QdrantURL = mustEnv("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantCollection = mustEnv("QDRANT_COLLECTION", cfg.QdrantCollection)
	cfg.QdrantAPIKey = mustEnv("QDRANT_API_KEY", cfg.QdrantAPIKey)
	cfg.ChromemPath = mustEnv("CHROMEM_PATH", cfg.ChromemPath)
	cfg.ChromemCompress = mustEnvBool("CHROMEM_COMPRESS", cfg.ChromemCompress)

	cfg.RAGTopK = mustEnvInt("RAG_TOP_K", cfg.RAGTopK)
	cfg.RAGContextBudget = mustEnvInt("RAG_CONTEXT_BUDGET", cfg.RAGContextBudget)
	cfg.AnswerCacheSize = mustEnvInt("ANSWER_CACHE_SIZE", cfg.AnswerCacheSize)

	cfg.ChunkSize = mustEnvInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = mustEnvInt("CHUNK_OVERLAP", cfg.ChunkOverlap)

	cfg.IngestMode = mustEnv("INGEST_MODE", cfg.IngestMode)
	cfg.NATSURL = mustEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = mustEnv("NATS_SUBJECT", cfg.NATSSubject)

	cfg.APIAuthToken = mustEnv("API_AUTH_TOKEN", cfg.APIAuthToken)
	cfg.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)
	cfg.APIMaxInFlight = mustEnvInt("API_MAX_IN_FLIGHT", cfg.APIMaxInFlight)
	cfg.APIQueueWaitMs = mustEnvInt("API_QUEUE_WAIT_MS", cfg.APIQueueWaitMs)
	cfg.APIMaxBodyBytes = int64(mustEnvInt("API_MAX_BODY_BYTES", int(cfg.APIMaxBodyBytes)))

	cfg.ResilienceBreakerEnabled = mustEnvBool("RESILIENCE_BREAKER_ENABLED", cfg.ResilienceBreakerEnabled)
	cfg.ResilienceRetryAttempts = mustEnvInt("RESILIENCE_RETRY_ATTEMPTS", cfg.ResilienceRetryAttempts)
	cfg.ResilienceRetryBackoffMs = mustEnvInt("RESILIENCE_RETRY_BACKOFF_MS", cfg.ResilienceRetryBackoffMs)
	cfg.ResilienceRetryMaxBackoff = mustEnvInt("RESILIENCE_RETRY_MAX_BACKOFF_MS", cfg.ResilienceRetryMaxBackoff)
	cfg.ResilienceBreakerMinCalls = mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", cfg.ResilienceBreakerMinCalls)
	cfg.ResilienceBreakerRatio = mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", cfg.ResilienceBreakerRatio)
	cfg.ResilienceBreakerOpenSecs = mustEnvInt("RESILIENCE_BREAKER_OPEN_SECONDS", cfg.ResilienceBreakerOpenSecs)
	cfg.ResilienceBreakerHalfCalls = mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_CALLS", cfg.ResilienceBreakerHalfCalls)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
