package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// ClassifyDomainError retries only failures marked temporary. Caller
// mistakes and cancellations never count against the breaker.
func ClassifyDomainError(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrUnauthorized) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, domain.ErrTemporary) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
