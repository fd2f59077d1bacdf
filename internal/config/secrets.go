package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Secrets mirrors the keys of a Streamlit-style secrets.toml.
type Secrets struct {
	EmbeddingModelName string `toml:"embedding_model_name"`
	ChatBackendURL     string `toml:"chat_backend_url"`
	ChatAPIKey         string `toml:"chat_api_key"`
	StoreConnection    string `toml:"store_connection"`
}

// LoadSecrets reads path, or DefaultSecretsFile when path is empty. A missing
// default file yields empty secrets.
func LoadSecrets(path string) (Secrets, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSecretsFile
	}
	var secrets Secrets
	if _, err := toml.DecodeFile(path, &secrets); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Secrets{}, nil
		}
		return Secrets{}, fmt.Errorf("read secrets file %s: %w", path, err)
	}
	return secrets, nil
}

func (s Secrets) apply(cfg *Config) {
	if v := strings.TrimSpace(s.EmbeddingModelName); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := strings.TrimSpace(s.ChatBackendURL); v != "" {
		cfg.ChatBaseURL = v
	}
	if v := strings.TrimSpace(s.ChatAPIKey); v != "" {
		cfg.ChatAPIKey = v
	}
	if v := strings.TrimSpace(s.StoreConnection); v != "" {
		cfg.StoreConnection = v
	}
}

// SecretStatus reports which secrets are present without revealing them.
type SecretStatus struct {
	Name    string
	Present bool
}

func (c Config) SecretStatuses() []SecretStatus {
	return []SecretStatus{
		{Name: "embedding_model_name", Present: c.EmbeddingModel != ""},
		{Name: "chat_backend_url", Present: c.ChatBaseURL != ""},
		{Name: "chat_api_key", Present: c.ChatAPIKey != ""},
		{Name: "store_connection", Present: c.StoreConnection != ""},
	}
}
