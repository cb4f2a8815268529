package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// AuthMiddleware authenticates requests by their bearer session token.
type AuthMiddleware struct {
	tokens auth.TokenIssuer
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(tokens auth.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Require rejects requests without a valid bearer token and stores the
// session in the request context otherwise.
func (am *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			WriteError(w, protocol.NewUnauthorizedError())
			return
		}

		session, err := am.tokens.Validate(r.Context(), token)
		if err != nil {
			WriteError(w, sessionError(err))
			return
		}

		ctx := withSession(r.Context(), session)
		ctx = withToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the session when a valid bearer token is present and
// passes the request on unchanged otherwise. A token that is present but
// invalid is still rejected.
func (am *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		session, err := am.tokens.Validate(r.Context(), token)
		if err != nil {
			WriteError(w, sessionError(err))
			return
		}

		ctx := withSession(r.Context(), session)
		ctx = withToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionError(err error) *protocol.ErrorResponse {
	switch {
	case errors.Is(err, auth.ErrSessionExpired):
		return protocol.NewSessionExpiredError()
	case errors.Is(err, auth.ErrSessionInvalid), errors.Is(err, auth.ErrSessionRevoked):
		return protocol.NewSessionInvalidError()
	default:
		return protocol.NewSystemError("session check failed")
	}
}
