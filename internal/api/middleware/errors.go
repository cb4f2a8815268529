package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// ErrorHandler returns middleware that recovers from panics.
func ErrorHandler(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", map[string]any{
						"error": err,
						"path":  r.URL.Path,
					})

					WriteError(w, protocol.NewSystemError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	// The status is already written; an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONError writes a JSON error response with an explicit status.
func WriteJSONError(w http.ResponseWriter, err *protocol.ErrorResponse, statusCode int) {
	WriteJSON(w, err, statusCode)
}

// WriteError writes err with the status its code maps to.
func WriteError(w http.ResponseWriter, err *protocol.ErrorResponse) {
	WriteJSONError(w, err, HTTPStatusForErrorCode(err.Code))
}

// HTTPStatusForErrorCode maps protocol error codes to HTTP status codes.
func HTTPStatusForErrorCode(code protocol.ErrorCode) int {
	switch code {
	case protocol.ErrCodeInvalidRequest,
		protocol.ErrCodeChallengeInvalid:
		return http.StatusBadRequest

	case protocol.ErrCodeUnauthorized,
		protocol.ErrCodeAuthenticationFailed,
		protocol.ErrCodeSessionExpired,
		protocol.ErrCodeSessionInvalid:
		return http.StatusUnauthorized

	case protocol.ErrCodeNotFound:
		return http.StatusNotFound

	case protocol.ErrCodeConflict:
		return http.StatusConflict

	case protocol.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	case protocol.ErrCodeShuttingDown:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
