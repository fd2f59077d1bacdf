package openai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

func TestChatBackendComplete(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Short-form conversion."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	backend := NewChatBackend(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"})
	answer, err := backend.Complete(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "answer from context"},
		{Role: domain.RoleUser, Content: "question"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if answer != "Short-form conversion." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if captured.Model != "gpt-test" || len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestChatBackendSendsTemperatureAndMaxTokens(t *testing.T) {
	cases := []struct {
		name        string
		temperature float32
		want        float64
	}{
		{name: "zero is kept", temperature: 0, want: 0},
		{name: "configured", temperature: 0.7, want: 0.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode request: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
			}))
			defer server.Close()

			backend := NewChatBackend(Config{APIKey: "k", BaseURL: server.URL, Model: "m", MaxTokens: 512, Temperature: tc.temperature})
			if _, err := backend.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}}); err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			temperature, ok := body["temperature"].(float64)
			if !ok {
				t.Fatalf("temperature missing from request %v", body)
			}
			if math.Abs(temperature-tc.want) > 1e-6 {
				t.Fatalf("expected temperature %g, got %g", tc.want, temperature)
			}
			if body["max_tokens"] != float64(512) {
				t.Fatalf("expected max_tokens 512, got %v", body["max_tokens"])
			}
		})
	}
}

func TestChatBackendErrorKinds(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		temporary bool
		unauth    bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"overloaded"}}`, temporary: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, temporary: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`, unauth: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"bad model"}}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			backend := NewChatBackend(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
			answer, err := backend.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}})
			if !domain.IsKind(err, domain.ErrAnswerGeneration) {
				t.Fatalf("expected ErrAnswerGeneration, got %v", err)
			}
			if answer != "" {
				t.Fatalf("expected no partial answer, got %q", answer)
			}
			if got := domain.IsKind(err, domain.ErrTemporary); got != tc.temporary {
				t.Fatalf("temporary = %v, want %v (%v)", got, tc.temporary, err)
			}
			if got := domain.IsKind(err, domain.ErrUnauthorized); got != tc.unauth {
				t.Fatalf("unauthorized = %v, want %v (%v)", got, tc.unauth, err)
			}
		})
	}
}

func TestChatBackendCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewChatBackend(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}).Complete(ctx, nil)
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestEmbedderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.1,0.2,0.3],"index":0}],"model":"m","usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer server.Close()

	vector, err := NewEmbedder(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}).Embed(context.Background(), "permit amendment")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vector) != 3 || vector[2] != 0.3 {
		t.Fatalf("unexpected vector %v", vector)
	}
}

func TestEmbedderRejectsBlankAndOversizedInput(t *testing.T) {
	embedder := NewEmbedder(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1", Model: "m", MaxTokens: 4})
	for _, text := range []string{"", "   ", strings.Repeat("permit ", 10)} {
		if _, err := embedder.Embed(context.Background(), text); !domain.IsKind(err, domain.ErrEmbedding) {
			t.Fatalf("Embed(%q) expected ErrEmbedding, got %v", text, err)
		}
	}
}

func TestEmbedderServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"model loading"}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}).Embed(context.Background(), "x")
	if !domain.IsKind(err, domain.ErrEmbedding) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary embedding error, got %v", err)
	}
}
