package handlers

import (
	"net/http"

	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// SessionHandler serves session management endpoints.
type SessionHandler struct {
	tokens auth.TokenIssuer
	logger *logging.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(tokens auth.TokenIssuer, logger *logging.Logger) *SessionHandler {
	return &SessionHandler{tokens: tokens, logger: logger}
}

// HandleLogout handles POST /users/logout by revoking the presented token.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetToken(r.Context())
	session := middleware.GetSession(r.Context())
	if token == "" || session == nil {
		middleware.WriteError(w, protocol.NewUnauthorizedError())
		return
	}

	if err := h.tokens.Revoke(r.Context(), token); err != nil {
		systemError(w, h.logger, "logout", err)
		return
	}

	h.logger.Info("auth event", map[string]any{
		"event":       "session_revoked",
		"client_ip":   middleware.ClientIP(r),
		"srp_user_id": session.Identity,
	})
	w.WriteHeader(http.StatusNoContent)
}
