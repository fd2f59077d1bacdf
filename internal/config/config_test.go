package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaultsRunOffline(t *testing.T) {
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("STORE_PROVIDER", "")

	cfg, err := LoadFrom("", "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.RAGTopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.RAGTopK)
	}
	if cfg.EmbeddingProvider != "hashing" || cfg.ChatProvider != "scripted" || cfg.StoreProvider != "memory" {
		t.Fatalf("unexpected default providers: %+v", cfg)
	}
}

func TestLoadLayersYAMLSecretsAndEnv(t *testing.T) {
	configPath := writeTemp(t, "config.yaml", `
chat_provider: openai
chat_model: gpt-4o
store_provider: postgres
postgres_scoring: application
rag_top_k: 5
redis_addrs: ["redis-a:6379"]
`)
	secretsPath := writeTemp(t, "secrets.toml", `
embedding_model_name = "text-embedding-3-small"
chat_backend_url = "https://llm.internal/v1"
chat_api_key = "sk-secret-value"
store_connection = "postgres://warehouse/permits"
`)
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("CHAT_BACKEND_URL", "")

	cfg, err := LoadFrom(configPath, secretsPath)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ChatModel != "gpt-4o" || cfg.PostgresScoring != "application" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.ChatAPIKey != "sk-secret-value" || cfg.StoreConnection != "postgres://warehouse/permits" {
		t.Fatalf("secrets not applied: %+v", cfg)
	}
	if cfg.ChatBaseURL != "https://llm.internal/v1" {
		t.Fatalf("expected chat url from secrets, got %q", cfg.ChatBaseURL)
	}
	if cfg.RAGTopK != 7 {
		t.Fatalf("env must override yaml, got %d", cfg.RAGTopK)
	}
	if len(cfg.RedisAddrs) != 1 || cfg.RedisAddrs[0] != "redis-a:6379" {
		t.Fatalf("unexpected redis addrs %v", cfg.RedisAddrs)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
	if _, err := LoadSecrets(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing explicit secrets file")
	}
}

func TestValidateRequiresSecretsOnlyForSelectedProviders(t *testing.T) {
	cfg := Defaults()
	cfg.ChatProvider = "openai"
	cfg.StoreProvider = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"chat_api_key", "store_connection"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate, got %v", err)
	}
}

func TestValidateRejectsChromemWithDotMetric(t *testing.T) {
	cfg := Defaults()
	cfg.StoreProvider = "chromem"
	cfg.StoreMetric = "dot"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "cosine") {
		t.Fatalf("expected cosine-only error, got %v", err)
	}
}

func TestChatDefaultsToSingleAttemptAndEnvTemperature(t *testing.T) {
	t.Setenv("CHAT_TEMPERATURE", "0.3")
	t.Setenv("CHAT_RETRY_ATTEMPTS", "")

	cfg, err := LoadFrom("", "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ChatRetryAttempts != 1 {
		t.Fatalf("expected one chat attempt by default, got %d", cfg.ChatRetryAttempts)
	}
	if cfg.ChatTemperature != 0.3 {
		t.Fatalf("expected chat temperature 0.3, got %g", cfg.ChatTemperature)
	}

	cfg.ChatTemperature = 2.5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "chat_temperature") {
		t.Fatalf("expected chat_temperature error, got %v", err)
	}
}

func TestMustEnvListSplitsAndTrims(t *testing.T) {
	t.Setenv("REDIS_ADDRS", " a:1, ,b:2 ")
	got := mustEnvList("REDIS_ADDRS", nil)
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestSecretStatuses(t *testing.T) {
	cfg := Defaults()
	cfg.ChatAPIKey = "sk-123"
	present := map[string]bool{}
	for _, s := range cfg.SecretStatuses() {
		present[s.Name] = s.Present
	}
	if !present["chat_api_key"] || present["store_connection"] {
		t.Fatalf("unexpected statuses %v", present)
	}
}
