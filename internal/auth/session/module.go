package session

import (
	"context"
	"fmt"

	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore builds the store selected by session.backend
func NewStore(lc fx.Lifecycle, cfg *config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid session redis url: %w", err)
		}
		client := redis.NewClient(opts)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("session redis unreachable: %w", err)
				}
				logger.Info("Using redis session store", zap.String("addr", opts.Addr))
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return NewRedisStore(client, cfg), nil
	case config.SessionBackendCookie, "":
		logger.Info("Using cookie session store")
		return NewCookieStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// Module provides the session store and manager
var Module = fx.Module("session",
	fx.Provide(
		NewStore,
		NewManager,
	),
)
