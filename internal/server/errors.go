package server

import (
	"net/http"

	"github.com/jonathan/campaign-studio/internal/apperr"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSubmission:
		return http.StatusBadGateway
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConcurrentModification:
		return http.StatusConflict
	case apperr.KindTimedOut:
		return http.StatusGatewayTimeout
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
