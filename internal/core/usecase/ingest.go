package usecase

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

// IngestUseCase embeds drafts and upserts them into the document store.
type IngestUseCase struct {
	embedder ports.Embedder
	store    ports.DocumentStore
	logger   *zap.Logger
}

func NewIngestUseCase(embedder ports.Embedder, store ports.DocumentStore, logger *zap.Logger) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Ingest stores every draft and returns the ids in input order. Drafts
// without an id get a random one. The first failure stops the batch;
// documents already upserted stay in place.
func (uc *IngestUseCase) Ingest(ctx context.Context, drafts []domain.DocumentDraft) ([]string, error) {
	if len(drafts) == 0 {
		return nil, domain.InvalidArgument("ingest", "no documents supplied")
	}
	for i, draft := range drafts {
		if strings.TrimSpace(draft.Text) == "" {
			return nil, domain.InvalidArgument("ingest", "document %d has blank text", i)
		}
	}

	ids := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		id := strings.TrimSpace(draft.ID)
		if id == "" {
			id = uuid.NewString()
		}

		vector, err := uc.embedder.Embed(ctx, draft.Text)
		if err != nil {
			return ids, domain.WrapCallError(ctx, domain.ErrEmbedding, fmt.Sprintf("embed document %s", id), err)
		}

		doc := domain.Document{
			ID:       id,
			Text:     draft.Text,
			Vector:   vector,
			Metadata: maps.Clone(draft.Metadata),
		}
		if err := uc.store.Upsert(ctx, doc); err != nil {
			return ids, domain.WrapCallError(ctx, domain.ErrStore, fmt.Sprintf("upsert document %s", id), err)
		}
		ids = append(ids, id)
	}

	uc.logger.Info("documents_ingested", zap.Int("count", len(ids)))
	return ids, nil
}
