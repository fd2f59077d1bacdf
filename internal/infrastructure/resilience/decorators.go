package resilience

import (
	"context"
	"fmt"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

// Store guards a remote DocumentStore. Upserts are not retried because the
// caller owns the batch and reports partial progress.
type Store struct {
	inner ports.DocumentStore
	exec  *Executor
	name  string
}

func NewStore(inner ports.DocumentStore, exec *Executor, name string) *Store {
	return &Store{inner: inner, exec: exec, name: name}
}

func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	var out []domain.RetrievalResult
	op := s.name + ".nearest"
	err := s.exec.Execute(ctx, op, func(ctx context.Context) error {
		results, err := s.inner.Nearest(ctx, vector, k)
		if err != nil {
			return err
		}
		out = results
		return nil
	}, ClassifyDomainError)
	if err != nil {
		return nil, circuitError(domain.ErrStore, op, err)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, doc domain.Document) error {
	return s.inner.Upsert(ctx, doc)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// ChatBackend retries temporary completion failures.
type ChatBackend struct {
	inner ports.ChatBackend
	exec  *Executor
	name  string
}

func NewChatBackend(inner ports.ChatBackend, exec *Executor, name string) *ChatBackend {
	return &ChatBackend{inner: inner, exec: exec, name: name}
}

func (c *ChatBackend) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var out string
	op := c.name + ".complete"
	err := c.exec.Execute(ctx, op, func(ctx context.Context) error {
		answer, err := c.inner.Complete(ctx, messages)
		if err != nil {
			return err
		}
		out = answer
		return nil
	}, ClassifyDomainError)
	if err != nil {
		return "", circuitError(domain.ErrAnswerGeneration, op, err)
	}
	return out, nil
}

// Embedder retries temporary embedding failures.
type Embedder struct {
	inner ports.Embedder
	exec  *Executor
	name  string
}

func NewEmbedder(inner ports.Embedder, exec *Executor, name string) *Embedder {
	return &Embedder{inner: inner, exec: exec, name: name}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	op := e.name + ".embed"
	err := e.exec.Execute(ctx, op, func(ctx context.Context) error {
		vector, err := e.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = vector
		return nil
	}, ClassifyDomainError)
	if err != nil {
		return nil, circuitError(domain.ErrEmbedding, op, err)
	}
	return out, nil
}

// circuitError gives breaker rejections a domain kind.
func circuitError(kind error, operation string, err error) error {
	if !IsCircuitOpen(err) {
		return err
	}
	return domain.WrapError(kind, operation, fmt.Errorf("%w: %w", domain.ErrTemporary, err))
}
