// Package memory keeps documents in process memory and scores them by brute force.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

type entry struct {
	doc  domain.Document
	unit []float32
}

// Store is safe for concurrent use. Upserts of one id are serialized; reads
// and upserts of other ids proceed concurrently.
type Store struct {
	metric domain.Metric

	mu        sync.RWMutex
	dimension int
	entries   map[string]*entry

	version atomic.Uint64
	locks   keyedMutex
}

func New(metric domain.Metric) *Store {
	if metric == "" {
		metric = domain.MetricCosine
	}
	return &Store{
		metric:  metric,
		entries: make(map[string]*entry),
		locks:   keyedMutex{held: make(map[string]*lockRef)},
	}
}

func (s *Store) Metric() domain.Metric { return s.metric }

func (s *Store) Version() uint64 { return s.version.Load() }

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCancelled, "memory ping", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return domain.InvalidArgument("memory upsert", "document id is blank")
	}
	if len(doc.Vector) == 0 {
		return domain.InvalidArgument("memory upsert", "document %s has no vector", doc.ID)
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCancelled, "memory upsert", err)
	}

	unlock := s.locks.lock(doc.ID)
	defer unlock()

	next := &entry{doc: doc.Clone()}
	if s.metric == domain.MetricCosine {
		next.unit = domain.Normalize(doc.Vector)
	}

	s.mu.Lock()
	if s.dimension != 0 && s.dimension != len(doc.Vector) {
		dim := s.dimension
		s.mu.Unlock()
		return domain.DimensionMismatch("memory upsert", dim, len(doc.Vector))
	}
	s.dimension = len(doc.Vector)
	s.entries[doc.ID] = next
	s.mu.Unlock()

	s.version.Add(1)
	return nil
}

func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("memory nearest", "k must be positive, got %d", k)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCancelled, "memory nearest", err)
	}

	s.mu.RLock()
	dimension := s.dimension
	snapshot := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()

	if len(snapshot) == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(vector) != dimension {
		return nil, domain.DimensionMismatch("memory nearest", dimension, len(vector))
	}

	query := vector
	if s.metric == domain.MetricCosine {
		query = domain.Normalize(vector)
	}

	results := make([]domain.RetrievalResult, 0, len(snapshot))
	for _, e := range snapshot {
		var score float64
		if s.metric == domain.MetricCosine {
			score = domain.Dot(e.unit, query)
		} else {
			score = domain.Dot(e.doc.Vector, query)
		}
		results = append(results, domain.RetrievalResult{Document: e.doc, Score: score})
	}

	results = domain.TopK(results, k)
	for i := range results {
		results[i].Document = results[i].Document.Clone()
	}
	return results, nil
}

type lockRef struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]*lockRef
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	ref, ok := k.held[key]
	if !ok {
		ref = &lockRef{}
		k.held[key] = ref
	}
	ref.refs++
	k.mu.Unlock()

	ref.mu.Lock()
	return func() {
		ref.mu.Unlock()
		k.mu.Lock()
		ref.refs--
		if ref.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}
