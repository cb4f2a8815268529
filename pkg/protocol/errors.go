// Package protocol defines the JSON messages and error codes of the srpgate API.
package protocol

import "fmt"

// ErrorCode is the machine-readable code of an API error.
type ErrorCode string

// API error codes.
const (
	// Every login or second-factor failure collapses into this code so the
	// response does not reveal which check failed.
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeSessionExpired       ErrorCode = "SESSION_EXPIRED"
	ErrCodeSessionInvalid       ErrorCode = "SESSION_INVALID"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"

	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeChallengeInvalid ErrorCode = "CHALLENGE_INVALID"
	ErrCodeConflict         ErrorCode = "CONFLICT"

	ErrCodeSystemError  ErrorCode = "SYSTEM_ERROR"
	ErrCodeShuttingDown ErrorCode = "SHUTTING_DOWN"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an ErrorResponse. At most one details string is used.
func NewError(code ErrorCode, message string, details ...string) *ErrorResponse {
	e := &ErrorResponse{Code: code, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// NewAuthenticationFailedError never carries the failure reason.
func NewAuthenticationFailedError() *ErrorResponse {
	return NewError(ErrCodeAuthenticationFailed, "Authentication failed")
}

func NewSessionExpiredError() *ErrorResponse {
	return NewError(ErrCodeSessionExpired, "Session token has expired")
}

func NewSessionInvalidError() *ErrorResponse {
	return NewError(ErrCodeSessionInvalid, "Session token is invalid")
}

func NewRateLimitExceededError(retryAfter int) *ErrorResponse {
	return NewError(ErrCodeRateLimitExceeded, "Rate limit exceeded", fmt.Sprintf("Retry after %d seconds", retryAfter))
}

func NewUnauthorizedError() *ErrorResponse {
	return NewError(ErrCodeUnauthorized, "Authentication required")
}

func NewInvalidRequestError(details string) *ErrorResponse {
	return NewError(ErrCodeInvalidRequest, "Invalid request", details)
}

func NewNotFoundError() *ErrorResponse {
	return NewError(ErrCodeNotFound, "No SRP attributes for this account")
}

func NewChallengeInvalidError() *ErrorResponse {
	return NewError(ErrCodeChallengeInvalid, "Setup challenge is unknown, expired or already used")
}

func NewConflictError() *ErrorResponse {
	return NewError(ErrCodeConflict, "Another verifier update is in progress")
}

func NewSystemError(details string) *ErrorResponse {
	return NewError(ErrCodeSystemError, "System error", details)
}

func NewShuttingDownError() *ErrorResponse {
	return NewError(ErrCodeShuttingDown, "Service is shutting down")
}
