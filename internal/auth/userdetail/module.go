package userdetail

import (
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/requester"
	"go.uber.org/fx"
)

// NewFromConfig builds the cache over the identity requester. It returns nil
// when the bearer path is disabled.
func NewFromConfig(cfg *config.IdentityConfig, r *requester.HTTPRequester) (*Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return New(r, cfg.CacheSize)
}

var Module = fx.Module("userdetail",
	fx.Provide(NewFromConfig),
)
