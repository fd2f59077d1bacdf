package ports

import (
	"context"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// QueryService is the inbound contract for retrieval-augmented answering.
type QueryService interface {
	Answer(ctx context.Context, queryText string, k int) (*domain.AnswerResult, error)
}

// DocumentIngestor embeds and stores permit documents.
type DocumentIngestor interface {
	Ingest(ctx context.Context, drafts []domain.DocumentDraft) ([]string, error)
}
