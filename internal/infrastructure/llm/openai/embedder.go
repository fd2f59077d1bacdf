package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// Embedder requests float embeddings for a single text.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	maxTokens int
}

func NewEmbedder(cfg Config) *Embedder {
	return &Embedder{
		client:    newClient(cfg),
		model:     openai.EmbeddingModel(cfg.Model),
		maxTokens: cfg.MaxTokens,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := domain.CheckEmbeddingInput("openai embed", text, e.maxTokens); err != nil {
		return nil, err
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, classifyAPIError(ctx, domain.ErrEmbedding, "openai embed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "openai embed", fmt.Errorf("empty embedding response"))
	}
	return resp.Data[0].Embedding, nil
}
