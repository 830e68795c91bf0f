// Package api serves the application endpoints behind the two auth paths.
package api

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/brizzai/llm-server/internal/auth"
	"github.com/brizzai/llm-server/internal/auth/middleware"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/auth/session"
	"github.com/brizzai/llm-server/internal/auth/userdetail"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/brizzai/llm-server/internal/utils"
	"go.uber.org/zap"
)

type messageResponse struct {
	Message string             `json:"message"`
	User    *models.UserInfo   `json:"user,omitempty"`
	Detail  *models.UserDetail `json:"detail,omitempty"`
}

// Handler serves the public, session-protected and bearer-protected endpoints
type Handler struct {
	auth     *auth.Service
	sessions *session.Manager
	users    *userdetail.Cache
}

// NewHandler creates the API handler. users may be nil when the bearer path is disabled.
func NewHandler(authService *auth.Service, users *userdetail.Cache) *Handler {
	return &Handler{
		auth:     authService,
		sessions: authService.Sessions(),
		users:    users,
	}
}

// RegisterRoutes registers the API endpoints on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleHome)
	mux.HandleFunc("GET /public", h.HandlePublic)
	mux.HandleFunc("GET /protected/{rest...}", h.HandleProtectedPage)

	if !h.auth.BearerEnabled() {
		logger.Info("Bearer verification disabled, /api routes will answer 401")
	}
	requireBearer := h.auth.RequireBearer()
	mux.Handle("GET /api/protected", requireBearer(http.HandlerFunc(h.HandleProtected)))
	mux.Handle("GET /api/user", requireBearer(http.HandlerFunc(h.HandleUser)))
	mux.Handle("POST /api/protected-action", requireBearer(http.HandlerFunc(h.HandleProtectedAction)))
}

// HandlePublic needs no authentication
func (h *Handler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, messageResponse{Message: "This is a public endpoint"})
}

// HandleProtectedPage is reached only through the session guard
func (h *Handler) HandleProtectedPage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.WriteError(w, "unauthorized", "not logged in", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, messageResponse{
		Message: fmt.Sprintf("Hello %s, you reached %s", displayName(user), r.URL.Path),
		User:    user,
	})
}

func (h *Handler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		utils.WriteErr(w, models.ErrUnauthorized)
		return
	}
	utils.WriteJSON(w, messageResponse{Message: fmt.Sprintf("Welcome, user %s!", id.UserID)})
}

// HandleUser returns the identity provider's view of the caller
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		utils.WriteErr(w, models.ErrUnauthorized)
		return
	}
	if h.users == nil {
		utils.WriteErr(w, models.ErrUpstreamUnavailable)
		return
	}

	detail, err := h.users.GetUserDetail(r.Context(), id.UserID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to look up user", zap.String("user_id", id.UserID), zap.Error(err))
		utils.WriteErr(w, err)
		return
	}
	utils.WriteJSON(w, messageResponse{
		Message: fmt.Sprintf("User ID: %s", detail.ID),
		Detail:  detail,
	})
}

func (h *Handler) HandleProtectedAction(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		utils.WriteErr(w, models.ErrUnauthorized)
		return
	}
	logger.FromContext(r.Context()).Info("Protected action", zap.String("user_id", id.UserID))
	utils.WriteJSON(w, messageResponse{Message: fmt.Sprintf("Action performed by user %s", id.UserID)})
}

var homeTmpl = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>llm-server</title></head>
<body>
{{- if .Name}}
<p>Hello, {{.Name}}! <a href="/logout">Sign out</a></p>
{{- else}}
<p><a href="{{.LoginPage}}">Sign in</a></p>
{{- end}}
</body>
</html>
`))

// HandleHome shows the current user or a link to the login page
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	view := struct {
		Name      string
		LoginPage string
	}{LoginPage: h.auth.LoginPage()}
	if user := h.sessions.CurrentUser(r); user != nil {
		view.Name = displayName(user)
	}
	if err := homeTmpl.Execute(w, view); err != nil {
		logger.FromContext(r.Context()).Error("Failed to render home page", zap.Error(err))
	}
}

func displayName(u *models.UserInfo) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}
