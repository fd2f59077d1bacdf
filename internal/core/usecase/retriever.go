package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

// Retriever embeds a question and asks the store for its nearest documents.
type Retriever struct {
	embedder ports.Embedder
	store    ports.DocumentStore
}

func NewRetriever(embedder ports.Embedder, store ports.DocumentStore) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query domain.Query, k int) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, domain.InvalidArgument("retrieve", "query text is blank")
	}
	if k <= 0 {
		return nil, domain.InvalidArgument("retrieve", "k must be positive, got %d", k)
	}

	vector, err := r.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, domain.WrapCallError(ctx, domain.ErrEmbedding, "embed query", err)
	}

	results, err := r.store.Nearest(ctx, vector, k)
	if err != nil {
		return nil, domain.WrapCallError(ctx, domain.ErrStore, "nearest documents", err)
	}
	return results, nil
}
