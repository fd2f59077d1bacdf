package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

// AnswerComposer turns retrieved context and a question into one chat request.
type AnswerComposer struct {
	backend       ports.ChatBackend
	contextBudget int
	now           func() time.Time
}

type ComposerOption func(*AnswerComposer)

// WithContextBudget caps the combined document text (in runes) sent to the
// backend. Zero or negative disables the cap.
func WithContextBudget(runes int) ComposerOption {
	return func(c *AnswerComposer) {
		c.contextBudget = runes
	}
}

func WithClock(now func() time.Time) ComposerOption {
	return func(c *AnswerComposer) {
		if now != nil {
			c.now = now
		}
	}
}

func NewAnswerComposer(backend ports.ChatBackend, opts ...ComposerOption) *AnswerComposer {
	c := &AnswerComposer{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AnswerComposer) Compose(
	ctx context.Context,
	query domain.Query,
	results []domain.RetrievalResult,
) (*domain.AnswerResult, error) {
	kept, dropped := fitBudget(results, c.contextBudget)

	answer, err := c.backend.Complete(ctx, buildMessages(query.Text, kept))
	if err != nil {
		return nil, domain.WrapCallError(ctx, domain.ErrAnswerGeneration, "chat completion", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, domain.WrapError(domain.ErrAnswerGeneration, "chat completion", errEmptyAnswer)
	}

	sources := make([]domain.Document, 0, len(kept))
	for _, item := range kept {
		sources = append(sources, item.Document.WithoutVector())
	}

	return &domain.AnswerResult{
		Answer:         answer,
		Sources:        sources,
		GeneratedAt:    c.now().UTC(),
		DroppedSources: dropped,
	}, nil
}
