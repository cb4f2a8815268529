package handlers

import (
	"errors"
	"net/http"

	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// MFAHandler serves the email second-factor endpoints.
type MFAHandler struct {
	auth   *auth.Authenticator
	events authEvents
	logger *logging.Logger
}

// NewMFAHandler creates a new MFA handler.
func NewMFAHandler(a *auth.Authenticator, limiter *auth.RateLimiter, logger *logging.Logger) *MFAHandler {
	return &MFAHandler{
		auth:   a,
		events: authEvents{limiter: limiter, logger: logger},
		logger: logger,
	}
}

// HandleVerifyEmail handles POST /users/two-factor/email/verify.
func (h *MFAHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)

	var req protocol.VerifyEmailMFARequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}
	if req.SessionID == "" || req.Code == "" {
		middleware.WriteError(w, protocol.NewInvalidRequestError("sessionID and code are required"))
		return
	}

	result, err := h.auth.VerifyEmailMFA(r.Context(), req)
	if err != nil {
		if isHandshakeFailure(err) {
			h.events.fail(w, "mfa_email_failed", clientIP, "", err)
			return
		}
		systemError(w, h.logger, "verify email code", err)
		return
	}

	h.events.succeed("mfa_email_succeeded", clientIP, result.Identity)
	middleware.WriteJSON(w, protocol.UserVerificationResponse{
		ID:    result.Identity,
		Token: result.Token,
	}, http.StatusOK)
}

// HandleSetEmailMFA handles PUT /users/two-factor/email for the session's
// own account.
func (h *MFAHandler) HandleSetEmailMFA(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		middleware.WriteError(w, protocol.NewUnauthorizedError())
		return
	}

	var req protocol.SetEmailMFARequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}

	err := h.auth.SetEmailMFA(r.Context(), session.Identity, req.IsEnabled)
	switch {
	case err == nil:
		h.events.log("mfa_email_toggled", middleware.ClientIP(r), session.Identity, map[string]any{"enabled": req.IsEnabled})
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrNotFound):
		middleware.WriteError(w, protocol.NewNotFoundError())
	default:
		systemError(w, h.logger, "set email mfa", err)
	}
}
