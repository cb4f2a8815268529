// Package handlers provides the HTTP handlers of the srpgate API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// maxBodyBytes bounds every JSON request body. A 4096-bit verifier in
// base64 is under 1 KiB.
const maxBodyBytes = 64 << 10

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// authEvents logs handshake outcomes and feeds the per-IP rate limiter.
type authEvents struct {
	limiter *auth.RateLimiter
	logger  *logging.Logger
}

func (ae authEvents) log(event, clientIP, identity string, fields map[string]any) {
	f := map[string]any{
		"event":       event,
		"client_ip":   clientIP,
		"srp_user_id": identity,
	}
	for k, v := range fields {
		f[k] = v
	}
	ae.logger.Info("auth event", f)
}

// fail records a failed attempt and writes AUTHENTICATION_FAILED with the
// enforced back-off. The cause is only logged.
func (ae authEvents) fail(w http.ResponseWriter, event, clientIP, identity string, cause error) {
	var delay time.Duration
	if ae.limiter != nil {
		delay = ae.limiter.RecordFailure(clientIP)
	}
	ae.log(event, clientIP, identity, map[string]any{"error": cause.Error()})

	if delay > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(auth.FormatRetryAfter(delay)))
	}
	middleware.WriteError(w, protocol.NewAuthenticationFailedError())
}

func (ae authEvents) succeed(event, clientIP, identity string) {
	if ae.limiter != nil {
		ae.limiter.RecordSuccess(clientIP)
	}
	ae.log(event, clientIP, identity, nil)
}

// isHandshakeFailure reports whether err is an expected handshake outcome
// rather than a server fault.
func isHandshakeFailure(err error) bool {
	for _, target := range []error{
		auth.ErrNotFound,
		auth.ErrExpired,
		auth.ErrAlreadyConsumed,
		auth.ErrProofMismatch,
		auth.ErrInvalidRequest,
		auth.ErrMFACodeInvalid,
		auth.ErrMFATooManyAttempts,
		srp.ErrInvalidEphemeral,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// systemError logs err and writes an opaque SYSTEM_ERROR.
func systemError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	logger.Error("request failed", map[string]any{"operation": op, "error": err.Error()})
	middleware.WriteError(w, protocol.NewSystemError(op+" failed"))
}
