package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrEmbedding         = errors.New("embedding failed")
	ErrStore             = errors.New("document store failure")
	ErrAnswerGeneration  = errors.New("answer generation failed")
	ErrCancelled         = errors.New("cancelled")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrDimensionMismatch = fmt.Errorf("%w: vector dimension mismatch", ErrInvalidArgument)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// InvalidArgument builds an ErrInvalidArgument with a formatted reason.
func InvalidArgument(operation, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", operation, ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// DimensionMismatch reports a vector whose length differs from the store's.
func DimensionMismatch(operation string, want, got int) error {
	return fmt.Errorf("%s: %w: want %d, got %d", operation, ErrDimensionMismatch, want, got)
}

// WrapCallError classifies a failed external call. A done context wins over the
// component kind so callers always observe ErrCancelled after cancellation.
// Errors already carrying a kind are returned untouched.
func WrapCallError(ctx context.Context, kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if IsKind(err, ErrCancelled) {
		return err
	}
	if ctx != nil && ctx.Err() != nil {
		return WrapError(ErrCancelled, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return WrapError(ErrCancelled, operation, err)
	}
	if hasKind(err) {
		return err
	}
	return WrapError(kind, operation, err)
}

func hasKind(err error) bool {
	for _, kind := range []error{ErrInvalidArgument, ErrEmbedding, ErrStore, ErrAnswerGeneration} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
