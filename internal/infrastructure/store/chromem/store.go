// Package chromem is an embedded DocumentStore backed by chromem-go. It
// supports only cosine similarity because chromem normalizes every vector.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

var errNoEmbeddingFunc = errors.New("documents must carry precomputed embeddings")

type Config struct {
	// Path enables persistence; empty keeps everything in memory.
	Path       string
	Compress   bool
	Collection string
	// Dimension fixes the vector length up front; 0 learns it from data.
	Dimension int
}

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu        sync.Mutex
	dimension int
	version   atomic.Uint64
}

func New(cfg Config, metric domain.Metric) (*Store, error) {
	if metric != domain.MetricCosine {
		return nil, fmt.Errorf("chromem store supports only %s similarity, got %q", domain.MetricCosine, metric)
	}
	name := strings.TrimSpace(cfg.Collection)
	if name == "" {
		name = "permits"
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create chromem directory %s: %w", cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(name, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	return &Store{
		db:         db,
		collection: collection,
		dimension:  cfg.Dimension,
	}, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (s *Store) Version() uint64 { return s.version.Load() }

func (s *Store) Len() int { return s.collection.Count() }

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCancelled, "ping", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return domain.InvalidArgument("upsert", "document id is blank")
	}
	if len(doc.Vector) == 0 {
		return domain.InvalidArgument("upsert", "document %s has no vector", doc.ID)
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCancelled, "upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(doc.Vector)
	} else if s.dimension != len(doc.Vector) {
		return domain.DimensionMismatch("upsert", s.dimension, len(doc.Vector))
	}

	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Text,
		Metadata:  maps.Clone(doc.Metadata),
		Embedding: domain.Normalize(doc.Vector),
	})
	if err != nil {
		return domain.WrapCallError(ctx, domain.ErrStore, "upsert", err)
	}
	s.version.Add(1)
	return nil
}

// Nearest asks chromem for every document so equal scores can be ordered
// by id before trimming to k.
func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("nearest", "k must be positive, got %d", k)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCancelled, "nearest", err)
	}
	count := s.collection.Count()
	if count == 0 {
		return []domain.RetrievalResult{}, nil
	}

	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim > 0 && dim != len(vector) {
		return nil, domain.DimensionMismatch("nearest", dim, len(vector))
	}

	found, err := s.collection.QueryEmbedding(ctx, vector, count, nil, nil)
	if err != nil {
		return nil, domain.WrapCallError(ctx, domain.ErrStore, "nearest", err)
	}

	results := make([]domain.RetrievalResult, 0, len(found))
	for _, r := range found {
		var metadata map[string]string
		if len(r.Metadata) > 0 {
			metadata = maps.Clone(r.Metadata)
		}
		results = append(results, domain.RetrievalResult{
			Document: domain.Document{
				ID:       r.ID,
				Text:     r.Content,
				Vector:   append([]float32(nil), r.Embedding...),
				Metadata: metadata,
			},
			Score: float64(r.Similarity),
		})
	}
	if dim == 0 && len(results) > 0 {
		s.mu.Lock()
		if s.dimension == 0 {
			s.dimension = len(results[0].Document.Vector)
		}
		s.mu.Unlock()
	}
	return domain.TopK(results, k), nil
}
