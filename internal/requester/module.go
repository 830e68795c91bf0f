package requester

import (
	"github.com/brizzai/llm-server/internal/config"
	"go.uber.org/fx"
)

// NewIdentityRequester builds the requester used for identity provider API lookups
func NewIdentityRequester(cfg *config.IdentityConfig) *HTTPRequester {
	return NewHTTPRequester(cfg.APIBaseURL, cfg.Timeout, NewBearerAuthManager(cfg.SecretKey))
}

// Module provides the identity provider API client
var Module = fx.Module("requester",
	fx.Provide(NewIdentityRequester),
)
