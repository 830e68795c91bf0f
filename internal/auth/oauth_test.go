package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/auth/providers"
	"github.com/brizzai/llm-server/internal/auth/session"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements providers.Provider for testing
type mockProvider struct{}

func (m *mockProvider) Name() models.ProviderName { return models.ProviderGitHub }
func (m *mockProvider) BeginLogin(context.Context, string) (string, *models.PendingAuth, error) {
	return "https://github.com/login/oauth/authorize", &models.PendingAuth{Provider: models.ProviderGitHub}, nil
}
func (m *mockProvider) CompleteLogin(context.Context, *http.Request, *models.PendingAuth, string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: "1"}, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	reg := providers.NewRegistry()
	reg.Register(&mockProvider{})
	sessions := session.NewManager(session.NewCookieStore(&config.SessionConfig{
		CookieName: "llm_session",
		Secret:     strings.Repeat("x", 32),
		MaxAge:     time.Hour,
	}))
	service, err := NewService(&config.ServerConfig{
		LoginPage:         "/login_page",
		ProtectedPrefixes: []string{"/protected/"},
		AllowOrigins:      []string{"http://localhost:3000"},
	}, reg, sessions, nil)
	require.NoError(t, err)
	return service
}

func TestNewService(t *testing.T) {
	service := newTestService(t)
	assert.NotNil(t, service.handler)
	assert.Equal(t, 1, service.GetRegistry().Len())
	assert.NotNil(t, service.Sessions())
	assert.False(t, service.BearerEnabled())
}

func TestRegisterRoutes(t *testing.T) {
	service := newTestService(t)
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	routes := []string{
		"/login/github",
		"/auth/github",
		"/logout",
		"/me",
		"/login_page",
	}
	for _, route := range routes {
		r := httptest.NewRequest(http.MethodGet, route, nil)
		_, pattern := mux.Handler(r)
		assert.NotEmpty(t, pattern, "route %s not registered", route)
	}
}

func TestWrapWithMiddleware(t *testing.T) {
	service := newTestService(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/protected/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux.HandleFunc("/public", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	wrapped := service.WrapWithMiddleware(mux)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	wrapped.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected/x", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login_page", rec.Header().Get("Location"))
}

func TestRequireBearer_Disabled(t *testing.T) {
	service := newTestService(t)
	h := service.RequireBearer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a verifier")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer anything")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}
