package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/auth/providers"
	"github.com/brizzai/llm-server/internal/auth/session"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/brizzai/llm-server/internal/utils"
	"go.uber.org/zap"
)

// Handler serves the browser login flow
type Handler struct {
	baseURL   string
	loginPage string
	registry  *providers.Registry
	sessions  *session.Manager
}

// NewHandler creates a new Handler instance. An empty baseURL derives
// callback URLs from the incoming request.
func NewHandler(baseURL, loginPage string, registry *providers.Registry, sessions *session.Manager) *Handler {
	return &Handler{
		baseURL:   strings.TrimRight(baseURL, "/"),
		loginPage: loginPage,
		registry:  registry,
		sessions:  sessions,
	}
}

// HandleLogin handles GET /login/{provider}
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	name := r.PathValue("provider")
	provider, err := h.registry.Lookup(name)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	rec, err := h.sessions.Load(r)
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		utils.WriteErr(w, err)
		return
	}

	authURL, pending, err := provider.BeginLogin(r.Context(), h.callbackURL(r, name))
	if err != nil {
		log.Error("Failed to start login", zap.String("provider", name), zap.Error(err))
		utils.WriteErr(w, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err))
		return
	}

	// A new attempt replaces any unfinished one
	rec.Pending = pending
	if err := h.sessions.Save(w, r, rec); err != nil {
		log.Error("Failed to store pending login", zap.Error(err))
		utils.WriteErr(w, err)
		return
	}

	log.Debug("Redirecting to provider", zap.String("provider", name))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback handles GET /auth/{provider}
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	name := r.PathValue("provider")
	provider, err := h.registry.Lookup(name)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	rec, err := h.sessions.Load(r)
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		utils.WriteErr(w, err)
		return
	}

	pending := rec.TakePending()
	var user *models.UserInfo
	if pending != nil && time.Since(pending.CreatedAt) > constants.PendingAuthTTL {
		err = models.NewAuthError(provider.Name(), "login attempt expired", nil)
	} else {
		user, err = provider.CompleteLogin(r.Context(), r, pending, h.callbackURL(r, name))
	}

	var target string
	if err == nil {
		target, err = rec.Login(user)
	}
	if err != nil {
		h.fail(w, r, rec, provider.Name(), err)
		return
	}

	if err := h.sessions.Save(w, r, rec); err != nil {
		log.Error("Failed to write session", zap.Error(err))
		utils.WriteErr(w, err)
		return
	}

	log.Info("User logged in",
		zap.String("provider", name),
		zap.String("user_id", user.ID),
		zap.String("redirect", target))
	http.Redirect(w, r, target, http.StatusFound)
}

// fail persists the consumed pending state and renders the failure. No user is written.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, rec *session.Record, provider models.ProviderName, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("Login failed", zap.String("provider", provider.String()), zap.Error(err))

	if saveErr := h.sessions.Save(w, r, rec); saveErr != nil {
		log.Error("Failed to clear pending login", zap.Error(saveErr))
	}

	message := "login could not be completed"
	var authErr *models.AuthError
	if errors.As(err, &authErr) {
		message = authErr.Message
	}
	renderLoginError(w, http.StatusUnauthorized, loginErrorView{
		Provider:  provider.String(),
		Message:   message,
		LoginPage: h.loginPage,
	})
}

// HandleLogout handles GET /logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		logger.FromContext(r.Context()).Error("Failed to clear session", zap.Error(err))
	}
	http.Redirect(w, r, constants.DefaultRedirect, http.StatusFound)
}

// HandleLoginPage renders the provider chooser
func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	view := loginPageView{Providers: make([]string, 0, len(names))}
	for _, n := range names {
		view.Providers = append(view.Providers, n.String())
	}
	if user := h.sessions.CurrentUser(r); user != nil {
		view.User = user
	}
	renderLoginPage(w, view)
}

// HandleMe returns the session user
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := h.sessions.CurrentUser(r)
	if user == nil {
		utils.WriteError(w, "unauthorized", "not logged in", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, user)
}

// callbackURL must match the redirect URI registered with the provider
func (h *Handler) callbackURL(r *http.Request, provider string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + strings.Replace(constants.CallbackPath, "{provider}", provider, 1)
}
