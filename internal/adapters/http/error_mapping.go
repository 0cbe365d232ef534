package httpadapter

import (
	"net/http"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSourceNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrIndexMissing):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrIndexQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
