package httpadapter

import (
	"net/http"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// statusClientClosedRequest is the nginx convention for a request whose
// client went away before the response was ready.
const statusClientClosedRequest = 499

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrCancelled):
		return statusClientClosedRequest
	case domain.IsKind(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrStore):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrEmbedding), domain.IsKind(err, domain.ErrAnswerGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrCancelled):
		return "cancelled"
	case domain.IsKind(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "unauthorized"
	case domain.IsKind(err, domain.ErrEmbedding):
		return "embedding"
	case domain.IsKind(err, domain.ErrStore):
		return "store"
	case domain.IsKind(err, domain.ErrAnswerGeneration):
		return "answer_generation"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}
