package bearer

import (
	"context"

	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig builds the JWKS-backed verifier. It returns nil when the
// bearer path is disabled.
func NewFromConfig(lc fx.Lifecycle, cfg *config.IdentityConfig) (*Verifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	kf, err := NewJWKSKeyfunc(ctx, cfg.JWKSURL)
	if err != nil {
		cancel()
		return nil, err
	}
	lc.Append(fx.StopHook(cancel))

	logger.Info("Bearer token verification enabled",
		zap.String("jwks_url", cfg.JWKSURL),
		zap.String("issuer", cfg.Issuer),
		zap.Strings("authorized_parties", cfg.AuthorizedParties))
	return NewVerifier(cfg, kf)
}

var Module = fx.Module("bearer",
	fx.Provide(NewFromConfig),
)
