package auth

import (
	"net/http"

	"github.com/brizzai/llm-server/internal/auth/bearer"
	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/handlers"
	"github.com/brizzai/llm-server/internal/auth/middleware"
	"github.com/brizzai/llm-server/internal/auth/providers"
	"github.com/brizzai/llm-server/internal/auth/session"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/brizzai/llm-server/internal/utils"
	"go.uber.org/zap"
)

// Service ties the login flow, the session guard and the bearer verifier together
type Service struct {
	config   *config.ServerConfig
	registry *providers.Registry
	sessions *session.Manager
	verifier *bearer.Verifier
	handler  *handlers.Handler
}

// NewService creates the auth service. verifier may be nil when the bearer path is disabled.
func NewService(cfg *config.ServerConfig, registry *providers.Registry, sessions *session.Manager, verifier *bearer.Verifier) (*Service, error) {
	handler := handlers.NewHandler(cfg.BaseURL, cfg.LoginPage, registry, sessions)

	logger.Info("Auth service configured",
		zap.Any("providers", registry.Names()),
		zap.Strings("protected_prefixes", cfg.ProtectedPrefixes),
		zap.Bool("bearer", verifier != nil))

	return &Service{
		config:   cfg,
		registry: registry,
		sessions: sessions,
		verifier: verifier,
		handler:  handler,
	}, nil
}

// RegisterRoutes registers the browser login routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+constants.LoginPath, s.handler.HandleLogin)
	mux.HandleFunc("GET "+constants.CallbackPath, s.handler.HandleCallback)
	mux.HandleFunc("GET "+constants.LogoutPath, s.handler.HandleLogout)
	mux.HandleFunc("GET "+constants.MePath, s.handler.HandleMe)
	mux.HandleFunc("GET "+s.config.LoginPage, s.handler.HandleLoginPage)
}

// WrapWithMiddleware applies request logging, CORS and the session guard to handler
func (s *Service) WrapWithMiddleware(handler http.Handler) http.Handler {
	guarded := middleware.RequireSession(s.sessions, s.config.ProtectedPrefixes, s.config.LoginPage)(handler)
	return middleware.Logging(middleware.CORS(s.config.AllowOrigins)(guarded))
}

// BearerEnabled reports whether bearer-protected routes can be served
func (s *Service) BearerEnabled() bool {
	return s.verifier != nil
}

// RequireBearer returns the bearer middleware. With the bearer path
// disabled every request is rejected.
func (s *Service) RequireBearer() func(http.Handler) http.Handler {
	if s.verifier == nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				utils.WriteError(w, "unauthorized", "Bearer authentication is not configured", http.StatusUnauthorized)
			})
		}
	}
	return middleware.RequireBearer(s.verifier)
}

// LoginPage returns the path of the provider chooser
func (s *Service) LoginPage() string {
	return s.config.LoginPage
}

// Sessions returns the session manager
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// GetRegistry returns the provider registry
func (s *Service) GetRegistry() *providers.Registry {
	return s.registry
}
