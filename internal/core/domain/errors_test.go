package domain

import (
	"context"
	"errors"
	"testing"
)

func TestWrapCallErrorPrefersCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WrapCallError(ctx, ErrStore, "nearest", errors.New("connection reset"))
	if !IsKind(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if IsKind(err, ErrStore) {
		t.Fatalf("cancelled call must not be reported as store failure: %v", err)
	}
}

func TestWrapCallErrorKeepsExistingKind(t *testing.T) {
	inner := WrapError(ErrInvalidArgument, "nearest", errors.New("k must be positive"))
	err := WrapCallError(context.Background(), ErrStore, "nearest", inner)
	if err != inner {
		t.Fatalf("expected error to pass through unchanged, got %v", err)
	}
}

func TestWrapCallErrorAddsKind(t *testing.T) {
	err := WrapCallError(context.Background(), ErrEmbedding, "embed", errors.New("boom"))
	if !IsKind(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}
