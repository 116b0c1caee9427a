// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

// StatusFor maps a result code onto an HTTP status.
func StatusFor(code shared.Code) int {
	switch code {
	case shared.CodeOK:
		return http.StatusOK
	case shared.CodePermissionDenied:
		return http.StatusForbidden
	case shared.CodeUnavailable:
		return http.StatusConflict
	case shared.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
