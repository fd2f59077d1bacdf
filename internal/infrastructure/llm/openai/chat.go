package openai

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// ChatBackend sends one non-streaming chat completion per call.
type ChatBackend struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewChatBackend(cfg Config) *ChatBackend {
	return &ChatBackend{
		client:      newClient(cfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (b *ChatBackend) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	}
	// omitempty drops a zero temperature and the server default is 1.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    chatRole(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyAPIError(ctx, domain.ErrAnswerGeneration, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrAnswerGeneration, "chat completion", fmt.Errorf("response has no choices"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", domain.WrapError(domain.ErrAnswerGeneration, "chat completion", fmt.Errorf("response content is empty"))
	}
	return content, nil
}

// Ping lists models, which compatible servers answer without cost.
func (b *ChatBackend) Ping(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return classifyAPIError(ctx, domain.ErrAnswerGeneration, "list models", err)
	}
	return nil
}

func chatRole(role domain.ChatRole) string {
	switch role {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
