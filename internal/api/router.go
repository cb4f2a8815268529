package api

import (
	"net/http"

	"github.com/fzdarsky/srpgate/internal/api/handlers"
	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Authenticator    *auth.Authenticator
	Tokens           auth.TokenIssuer
	Limiter          *auth.RateLimiter
	Logger           *logging.Logger
	Shutdown         handlers.ShutdownState
	OpenRegistration bool

	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	TrustProxyHeaders bool
}

// NewRouter builds the complete API handler including the shared
// middleware stack.
func NewRouter(d Deps) http.Handler {
	authMW := middleware.NewAuthMiddleware(d.Tokens)
	limited := middleware.RateLimit(d.Limiter)

	srpHandler := handlers.NewSRPHandler(d.Authenticator, d.Limiter, d.Logger, d.OpenRegistration)
	mfaHandler := handlers.NewMFAHandler(d.Authenticator, d.Limiter, d.Logger)
	sessionHandler := handlers.NewSessionHandler(d.Tokens, d.Logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/srp/attributes", srpHandler.HandleGetAttributes)
	mux.Handle("POST /users/srp/setup", middleware.Chain(http.HandlerFunc(srpHandler.HandleSetup), limited, authMW.Optional))
	mux.Handle("POST /users/srp/complete", limited(http.HandlerFunc(srpHandler.HandleCompleteSetup)))
	mux.Handle("POST /users/srp/create-session", limited(http.HandlerFunc(srpHandler.HandleCreateSession)))
	mux.Handle("POST /users/srp/verify-session", limited(http.HandlerFunc(srpHandler.HandleVerifySession)))

	mux.Handle("POST /users/two-factor/email/verify", limited(http.HandlerFunc(mfaHandler.HandleVerifyEmail)))
	mux.Handle("PUT /users/two-factor/email", authMW.Require(http.HandlerFunc(mfaHandler.HandleSetEmailMFA)))

	mux.Handle("POST /users/logout", authMW.Require(http.HandlerFunc(sessionHandler.HandleLogout)))

	mux.Handle("GET /healthz", handlers.NewHealthHandler(d.Shutdown))

	stack := []func(http.Handler) http.Handler{middleware.ErrorHandler(d.Logger)}
	if d.TrustProxyHeaders {
		stack = append(stack, middleware.RealIP)
	}
	stack = append(stack, middleware.Logging(d.Logger))

	return middleware.Chain(mux, stack...)
}
