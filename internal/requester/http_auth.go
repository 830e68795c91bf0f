package requester

import (
	"fmt"
	"net/http"

	"github.com/brizzai/llm-server/internal/auth/constants"
)

// AuthType represents the type of authentication applied to upstream requests
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBearer AuthType = "bearer"
)

// AuthManager handles request authentication
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// HTTPAuthManager implements the AuthManager interface
type HTTPAuthManager struct {
	authType AuthType
	token    string
}

// NewBearerAuthManager authenticates every request with a static bearer secret
func NewBearerAuthManager(token string) *HTTPAuthManager {
	return &HTTPAuthManager{authType: AuthTypeBearer, token: token}
}

// NewNoAuthManager leaves requests untouched
func NewNoAuthManager() *HTTPAuthManager {
	return &HTTPAuthManager{authType: AuthTypeNone}
}

// ApplyAuth adds authentication to the request
func (a *HTTPAuthManager) ApplyAuth(req *http.Request) error {
	switch a.authType {
	case AuthTypeNone:
		return nil
	case AuthTypeBearer:
		if a.token == "" {
			return fmt.Errorf("bearer auth configured without a token")
		}
		req.Header.Set(constants.AuthHeaderName, constants.AuthHeaderPrefix+a.token)
	default:
		return fmt.Errorf("unsupported auth type: %s", a.authType)
	}
	return nil
}
