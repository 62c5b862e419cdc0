// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/quotedesk/quotedesk/internal/shared"
)

// StatusFor maps the domain error taxonomy onto HTTP status codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrAuthorization):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, shared.ErrConfiguration):
		return http.StatusInternalServerError, "Catalog Misconfigured"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError writes err as an RFC7807 problem. Internal errors do not leak
// their message.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, shared.ErrConfiguration) {
		detail = ""
	}
	Problem(w, status, title, detail)
}
