package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

func TestChatBackendSendsMessages(t *testing.T) {
	var captured struct {
		Model    string              `json:"model"`
		Messages []map[string]string `json:"messages"`
		Stream   bool                `json:"stream"`
		Options  map[string]float64  `json:"options"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" long-form to short-form "}}`))
	}))
	defer server.Close()

	backend := NewChatBackend(New(server.URL, "llama3", "nomic", 0), 0, 512)
	answer, err := backend.Complete(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "system"},
		{Role: domain.RoleUser, Content: "question?"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if answer != "long-form to short-form" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if captured.Model != "llama3" || captured.Stream || len(captured.Messages) != 2 || captured.Messages[1]["role"] != "user" {
		t.Fatalf("unexpected request: %+v", captured)
	}
	temperature, ok := captured.Options["temperature"]
	if !ok || temperature != 0 {
		t.Fatalf("expected temperature 0 in options, got %+v", captured.Options)
	}
	if captured.Options["num_predict"] != 512 {
		t.Fatalf("expected num_predict 512, got %+v", captured.Options)
	}
}

func TestChatBackendMissingContentIsAnswerGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	_, err := NewChatBackend(New(server.URL, "llama3", "nomic", 0), 0, 0).Complete(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrAnswerGeneration) {
		t.Fatalf("expected ErrAnswerGeneration, got %v", err)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", 0), 0)
	_, err := embedder.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrEmbedding) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary embedding error, got %v", err)
	}
}

func TestEmbedReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	vector, err := NewEmbedder(New(server.URL, "gen", "embed", 0), 0).Embed(context.Background(), "permit")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("unexpected vector %v", vector)
	}
}

func TestEmbedRejectsOversizedInputWithoutCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "gen", "embed", 0), 2).Embed(context.Background(), strings.Repeat("x", 40))
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if called {
		t.Fatalf("oversized input must not reach the server")
	}
}

func TestBadRequestIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "gen", "embed", 0), 0).Embed(context.Background(), "x")
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be retried, got %v", err)
	}
}

func TestMalformedReplyIsNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":`))
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "gen", "embed", 0), 0).Embed(context.Background(), "x")
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("malformed body must not be retried, got %v", err)
	}
}

func TestPingReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := New(server.URL, "gen", "embed", 0).Ping(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable || !statusErr.Temporary() {
		t.Fatalf("expected temporary 503 status error, got %v", err)
	}
}
