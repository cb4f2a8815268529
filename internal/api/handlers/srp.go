package handlers

import (
	"errors"
	"net/http"

	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// SRPHandler serves the SRP setup and login endpoints.
type SRPHandler struct {
	auth             *auth.Authenticator
	events           authEvents
	logger           *logging.Logger
	openRegistration bool
}

// NewSRPHandler creates the handler. With openRegistration unset only
// identities that already have a verifier may run setup (to rotate it).
func NewSRPHandler(a *auth.Authenticator, limiter *auth.RateLimiter, logger *logging.Logger, openRegistration bool) *SRPHandler {
	return &SRPHandler{
		auth:             a,
		events:           authEvents{limiter: limiter, logger: logger},
		logger:           logger,
		openRegistration: openRegistration,
	}
}

// HandleGetAttributes handles GET /users/srp/attributes?srpUserID=.
func (h *SRPHandler) HandleGetAttributes(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("srpUserID")
	if identity == "" {
		middleware.WriteError(w, protocol.NewInvalidRequestError("missing query parameter: srpUserID"))
		return
	}

	attrs, err := h.auth.GetAttributes(r.Context(), identity)
	switch {
	case err == nil:
		middleware.WriteJSON(w, protocol.GetSRPAttributesResponse{Attributes: *attrs}, http.StatusOK)
	case errors.Is(err, auth.ErrNotFound):
		middleware.WriteError(w, protocol.NewNotFoundError())
	default:
		systemError(w, h.logger, "get attributes", err)
	}
}

// HandleSetup handles POST /users/srp/setup. Replacing an existing verifier
// requires a session of the same identity.
func (h *SRPHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)

	var req protocol.SetupSRPRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}
	if req.SRPUserID == "" || req.SRPSalt == "" || req.SRPVerifier == "" || req.SRPA == "" {
		middleware.WriteError(w, protocol.NewInvalidRequestError("srpUserID, srpSalt, srpVerifier and srpA are required"))
		return
	}

	exists, err := h.auth.HasVerifier(r.Context(), req.SRPUserID)
	if err != nil {
		systemError(w, h.logger, "setup", err)
		return
	}

	session := middleware.GetSession(r.Context())
	switch {
	case exists && (session == nil || session.Identity != req.SRPUserID):
		h.events.log("srp_setup_unauthorized", clientIP, req.SRPUserID, nil)
		middleware.WriteError(w, protocol.NewUnauthorizedError())
		return
	case !exists && !h.openRegistration:
		h.events.log("srp_setup_registration_closed", clientIP, req.SRPUserID, nil)
		middleware.WriteError(w, protocol.NewError(protocol.ErrCodeUnauthorized, "Registration is closed"))
		return
	}

	resp, err := h.auth.BeginSetup(r.Context(), req, req.KeyAttributes)
	if err != nil {
		h.writeSetupError(w, "srp_setup_failed", clientIP, req.SRPUserID, err)
		return
	}

	h.events.log("srp_setup_started", clientIP, req.SRPUserID, map[string]any{"rotation": exists})
	middleware.WriteJSON(w, resp, http.StatusOK)
}

// HandleCompleteSetup handles POST /users/srp/complete.
func (h *SRPHandler) HandleCompleteSetup(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)

	var req protocol.CompleteSRPSetupRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}
	if req.SetupID == "" || req.SRPM1 == "" {
		middleware.WriteError(w, protocol.NewInvalidRequestError("setupID and srpM1 are required"))
		return
	}

	resp, err := h.auth.CompleteSetup(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrProofMismatch) {
			h.events.fail(w, "srp_setup_proof_mismatch", clientIP, "", err)
			return
		}
		h.writeSetupError(w, "srp_setup_complete_failed", clientIP, "", err)
		return
	}

	h.events.log("srp_setup_completed", clientIP, "", nil)
	middleware.WriteJSON(w, resp, http.StatusOK)
}

func (h *SRPHandler) writeSetupError(w http.ResponseWriter, event, clientIP, identity string, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidRequest), errors.Is(err, srp.ErrInvalidEphemeral):
		h.events.log(event, clientIP, identity, map[string]any{"error": err.Error()})
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrExpired), errors.Is(err, auth.ErrAlreadyConsumed):
		h.events.log(event, clientIP, identity, map[string]any{"error": err.Error()})
		middleware.WriteError(w, protocol.NewChallengeInvalidError())
	case errors.Is(err, auth.ErrConflict):
		h.events.log(event, clientIP, identity, map[string]any{"error": err.Error()})
		middleware.WriteError(w, protocol.NewConflictError())
	default:
		systemError(w, h.logger, "setup", err)
	}
}

// HandleCreateSession handles POST /users/srp/create-session. Unknown
// identities get a decoy challenge, so the response does not reveal
// whether the account exists.
func (h *SRPHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)

	var req protocol.CreateSRPSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}

	resp, err := h.auth.BeginLogin(r.Context(), req)
	if err != nil {
		if isHandshakeFailure(err) {
			h.events.fail(w, "srp_login_rejected", clientIP, req.SRPUserID, err)
			return
		}
		systemError(w, h.logger, "create session", err)
		return
	}

	h.events.log("srp_login_started", clientIP, req.SRPUserID, nil)
	middleware.WriteJSON(w, resp, http.StatusOK)
}

// HandleVerifySession handles POST /users/srp/verify-session.
func (h *SRPHandler) HandleVerifySession(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)

	var req protocol.VerifySRPSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}

	result, err := h.auth.CompleteLogin(r.Context(), req)
	if err != nil {
		if isHandshakeFailure(err) {
			h.events.fail(w, "srp_login_failed", clientIP, req.SRPUserID, err)
			return
		}
		systemError(w, h.logger, "verify session", err)
		return
	}

	if result.MFAPending() {
		h.events.log("srp_login_mfa_pending", clientIP, result.Identity, nil)
	} else {
		h.events.succeed("srp_login_succeeded", clientIP, result.Identity)
	}

	middleware.WriteJSON(w, protocol.UserVerificationResponse{
		ID:                 result.Identity,
		Token:              result.Token,
		TwoFactorSessionID: result.TwoFactorSessionID,
		SRPM2:              result.M2,
	}, http.StatusOK)
}
