package providers

import (
	"context"
	"net/http"

	"github.com/brizzai/llm-server/internal/auth/models"
)

// Provider defines the interface that all login providers must implement
type Provider interface {
	// Name returns the provider identifier used in login and callback paths
	Name() models.ProviderName

	// BeginLogin returns the URL to send the browser to and the pending
	// state that must be presented again on callback
	BeginLogin(ctx context.Context, callbackURL string) (string, *models.PendingAuth, error)

	// CompleteLogin validates the callback against pending, exchanges the
	// grant and fetches the user. Failures are *models.AuthError.
	CompleteLogin(ctx context.Context, r *http.Request, pending *models.PendingAuth, callbackURL string) (*models.UserInfo, error)
}
