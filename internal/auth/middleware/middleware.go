package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/auth/session"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/brizzai/llm-server/internal/utils"
	"go.uber.org/zap"
)

type authContextKey string

const (
	// IdentityContextKey holds the *models.VerifiedIdentity of a bearer request
	IdentityContextKey authContextKey = "identity"
	// UserContextKey holds the *models.UserInfo of a session request
	UserContextKey authContextKey = "user"
)

// TokenVerifier validates a raw bearer token
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.VerifiedIdentity, error)
}

// IdentityFromContext returns the identity stored by RequireBearer
func IdentityFromContext(ctx context.Context) (*models.VerifiedIdentity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(*models.VerifiedIdentity)
	return id, ok && id != nil
}

// UserFromContext returns the session user stored by RequireSession
func UserFromContext(ctx context.Context) (*models.UserInfo, bool) {
	u, ok := ctx.Value(UserContextKey).(*models.UserInfo)
	return u, ok && u != nil
}

// RequireBearer rejects requests without a valid Authorization bearer token
func RequireBearer(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				utils.WriteError(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.FromContext(r.Context()).Debug("Rejected bearer token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				utils.WriteError(w, "invalid_token", "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession guards every path under one of prefixes. Anonymous requests
// have their URI stashed in the session and are sent to loginPage.
func RequireSession(sessions *session.Manager, prefixes []string, loginPage string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasAnyPrefix(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			user := sessions.CurrentUser(r)
			if user == nil {
				// Best effort: concurrent anonymous requests from one browser race, last stash wins
				if err := sessions.StashRedirect(w, r, r.URL.RequestURI()); err != nil {
					logger.FromContext(r.Context()).Error("Failed to stash redirect target", zap.Error(err))
				}
				http.Redirect(w, r, loginPage, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS allows credentialed requests from the configured origins. Any request
// header asked for in a preflight is allowed.
func CORS(allowOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
				if _, ok := allowed[origin]; ok || allowAll {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
					allowHeaders := "Content-Type, Authorization, " + RequestIDHeader
					if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
						allowHeaders = requested
					}
					w.Header().Add("Vary", "Access-Control-Request-Headers")
					w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
					w.Header().Set("Access-Control-Expose-Headers", "WWW-Authenticate, "+RequestIDHeader)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the bearer token from the Authorization header only
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get(constants.AuthHeaderName)
	if len(authHeader) < len(constants.AuthHeaderPrefix) ||
		!strings.EqualFold(authHeader[:len(constants.AuthHeaderPrefix)], constants.AuthHeaderPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(constants.AuthHeaderPrefix):])
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
