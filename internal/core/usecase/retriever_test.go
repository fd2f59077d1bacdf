package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

func TestRetrieverRejectsBlankQuery(t *testing.T) {
	embedder := &tableEmbedder{}
	r := NewRetriever(embedder, &storeFake{})

	_, err := r.Retrieve(context.Background(), domain.Query{Text: "  \t"}, 3)
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if embedder.calls.Load() != 0 {
		t.Fatalf("blank query must not reach the embedder")
	}
}

func TestRetrieverRejectsNonPositiveK(t *testing.T) {
	r := NewRetriever(&tableEmbedder{}, &storeFake{})
	_, err := r.Retrieve(context.Background(), domain.Query{Text: "q"}, 0)
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRetrieverReturnsStoreResultsUnchanged(t *testing.T) {
	want := []domain.RetrievalResult{
		{Document: domain.Document{ID: "b"}, Score: 0.4},
		{Document: domain.Document{ID: "a"}, Score: 0.9},
	}
	store := &storeFake{results: want}
	r := NewRetriever(&tableEmbedder{}, store)

	got, err := r.Retrieve(context.Background(), domain.Query{Text: "q"}, 7)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if store.k != 7 {
		t.Fatalf("expected k=7 to reach the store, got %d", store.k)
	}
	if len(got) != 2 || got[0].Document.ID != "b" || got[1].Document.ID != "a" {
		t.Fatalf("results were reordered: %#v", got)
	}
}

func TestRetrieverClassifiesEmbedFailure(t *testing.T) {
	r := NewRetriever(&tableEmbedder{err: errors.New("model unavailable")}, &storeFake{})
	_, err := r.Retrieve(context.Background(), domain.Query{Text: "q"}, 3)
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestRetrieverClassifiesStoreFailure(t *testing.T) {
	r := NewRetriever(&tableEmbedder{}, &storeFake{err: errors.New("warehouse offline")})
	_, err := r.Retrieve(context.Background(), domain.Query{Text: "q"}, 3)
	if !domain.IsKind(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}
