package ports

import (
	"context"
	"errors"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// Embedder turns text into a fixed-length vector. Implementations are
// deterministic for a fixed model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore holds documents and answers nearest-neighbor queries.
type DocumentStore interface {
	Nearest(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error)
	Upsert(ctx context.Context, doc domain.Document) error
	Ping(ctx context.Context) error
}

// VersionedStore exposes a counter bumped on every successful upsert.
type VersionedStore interface {
	DocumentStore
	Version() uint64
}

// ChatBackend sends one chat-completion request and returns the reply text.
type ChatBackend interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// ErrKeyNotFound is returned by KeyValueStore.Get on a miss.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore backs the embedding cache.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// DocumentQueue publishes/consumes ingestion requests.
type DocumentQueue interface {
	PublishDocuments(ctx context.Context, drafts []domain.DocumentDraft) error
	SubscribeDocuments(ctx context.Context, handler func(context.Context, []domain.DocumentDraft) error) error
}
