package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// classifyError tags err with the component kind. Retryable status codes,
// timeouts and network failures additionally carry ErrTemporary.
func classifyError(ctx context.Context, kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.WrapCallError(ctx, kind, operation, err)
	}
	if isTransient(err) {
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(kind, operation, err)
}

func isTransient(err error) bool {
	if errors.Is(err, errMalformedResponse) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
