package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

// DefaultTopK is the number of sources requested when a caller gives none.
const DefaultTopK = 3

var errEmptyAnswer = errors.New("backend returned empty content")

// QueryPipeline wires retrieval and composition behind one call.
type QueryPipeline struct {
	retriever *Retriever
	composer  *AnswerComposer
	cache     *answerCache
	logger    *zap.Logger
}

type PipelineOption func(*QueryPipeline)

// WithAnswerCache enables caching keyed by question, k and store version.
// The cache stays disabled unless the store reports versions.
func WithAnswerCache(store ports.DocumentStore, maxEntries int) PipelineOption {
	return func(p *QueryPipeline) {
		versioned, ok := store.(ports.VersionedStore)
		if !ok || maxEntries <= 0 {
			return
		}
		p.cache = newAnswerCache(versioned, maxEntries)
	}
}

func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *QueryPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewQueryPipeline(retriever *Retriever, composer *AnswerComposer, opts ...PipelineOption) *QueryPipeline {
	p := &QueryPipeline{
		retriever: retriever,
		composer:  composer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *QueryPipeline) Answer(ctx context.Context, queryText string, k int) (*domain.AnswerResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.InvalidArgument("answer", "query text is blank")
	}
	if k <= 0 {
		return nil, domain.InvalidArgument("answer", "k must be positive, got %d", k)
	}

	var version uint64
	if p.cache != nil {
		cached, observed, ok := p.cache.get(queryText, k)
		if ok {
			p.logger.Debug("answer_cache_hit", zap.Int("k", k))
			return cached, nil
		}
		version = observed
	}

	query := domain.Query{Text: queryText}
	results, err := p.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	answer, err := p.composer.Compose(ctx, query, results)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("answer_composed",
		zap.Int("k", k),
		zap.Int("retrieved", len(results)),
		zap.Int("sources", len(answer.Sources)),
		zap.Int("dropped_sources", answer.DroppedSources),
	)

	if p.cache != nil {
		p.cache.put(queryText, k, version, answer)
	}
	return answer, nil
}
