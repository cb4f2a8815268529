package handlers

import (
	"net/http"

	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// ShutdownState reports whether the service is draining.
type ShutdownState interface {
	IsShutdown() bool
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	state ShutdownState
}

// NewHealthHandler creates a health handler. state may be nil.
func NewHealthHandler(state ShutdownState) *HealthHandler {
	return &HealthHandler{state: state}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.state != nil && h.state.IsShutdown() {
		middleware.WriteError(w, protocol.NewShuttingDownError())
		return
	}
	middleware.WriteJSON(w, protocol.HealthResponse{Status: "ok"}, http.StatusOK)
}
