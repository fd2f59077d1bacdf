package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, chatModel, embedModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embedder calls /api/embed for one text at a time.
type Embedder struct {
	client    *Client
	maxTokens int
}

func NewEmbedder(client *Client, maxTokens int) *Embedder {
	return &Embedder{client: client, maxTokens: maxTokens}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := domain.CheckEmbeddingInput("ollama embed", text, e.maxTokens); err != nil {
		return nil, err
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, http.MethodPost, "/api/embed", request, &response, "embed"); err != nil {
		return nil, classifyError(ctx, domain.ErrEmbedding, "ollama embed", err)
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "ollama embed", fmt.Errorf("empty embedding result"))
	}
	return response.Embeddings[0], nil
}

// ChatBackend calls /api/chat without streaming.
type ChatBackend struct {
	client      *Client
	temperature float64
	maxTokens   int
}

// NewChatBackend sends temperature on every request; maxTokens <= 0 leaves
// num_predict to the model default.
func NewChatBackend(client *Client, temperature float64, maxTokens int) *ChatBackend {
	return &ChatBackend{client: client, temperature: temperature, maxTokens: maxTokens}
}

func (b *ChatBackend) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	payload := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		})
	}
	options := map[string]any{"temperature": b.temperature}
	if b.maxTokens > 0 {
		options["num_predict"] = b.maxTokens
	}
	request := map[string]any{
		"model":    b.client.chatModel,
		"messages": payload,
		"stream":   false,
		"options":  options,
	}

	var response struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := b.client.call(ctx, http.MethodPost, "/api/chat", request, &response, "chat"); err != nil {
		return "", classifyError(ctx, domain.ErrAnswerGeneration, "ollama chat", err)
	}
	if response.Message == nil || strings.TrimSpace(response.Message.Content) == "" {
		return "", domain.WrapError(domain.ErrAnswerGeneration, "ollama chat", fmt.Errorf("response has no message content"))
	}
	return strings.TrimSpace(response.Message.Content), nil
}

// Ping checks that the server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, nil, "ping"); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	return nil
}
