package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

// mapErrorToHTTPStatus follows the error kind; a failed ingestion takes the status of its cause.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidArgument),
		domain.IsKind(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrEmbeddingUnavailable),
		domain.IsKind(err, domain.ErrIndexUnavailable),
		domain.IsKind(err, domain.ErrRegistryUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
