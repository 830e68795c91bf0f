// Package handler assembles the HTTP routing tree.
package handler

import (
	"net/http"

	"github.com/brizzai/llm-server/internal/api"
	"github.com/brizzai/llm-server/internal/auth"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
)

// Handler manages HTTP request handling and middleware configuration.
type Handler struct {
	auth *auth.Service
	api  *api.Handler
}

// NewHandler creates a new HTTP handler.
func NewHandler(authService *auth.Service, apiHandler *api.Handler) *Handler {
	return &Handler{
		auth: authService,
		api:  apiHandler,
	}
}

// CreateHTTPHandler registers every route and wraps the mux with logging,
// CORS and the session guard.
func (h *Handler) CreateHTTPHandler() http.Handler {
	mux := http.NewServeMux()

	h.auth.RegisterRoutes(mux)
	logger.Info("Registered authentication routes",
		zap.Int("providers", h.auth.GetRegistry().Len()))

	h.api.RegisterRoutes(mux)
	logger.Info("Registered API routes")

	return h.auth.WrapWithMiddleware(mux)
}
