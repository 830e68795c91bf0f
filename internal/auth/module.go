package auth

import (
	"github.com/brizzai/llm-server/internal/auth/bearer"
	"github.com/brizzai/llm-server/internal/auth/providers"
	"github.com/brizzai/llm-server/internal/auth/session"
	"github.com/brizzai/llm-server/internal/auth/userdetail"
	"go.uber.org/fx"
)

// Module provides the auth service and everything it is built from
var Module = fx.Module("auth",
	session.Module,
	bearer.Module,
	userdetail.Module,
	fx.Provide(
		providers.NewRegistryFromConfig,
		NewService,
	),
)
