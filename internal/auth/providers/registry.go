package providers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
)

type factory func(cfg config.ProviderConfig, client *http.Client) (Provider, error)

var factories = map[models.ProviderName]factory{
	models.ProviderGoogle:  NewGoogleProvider,
	models.ProviderGitHub:  NewGitHubProvider,
	models.ProviderTwitter: NewTwitterProvider,
}

// Registry holds one Provider per provider name. It is populated at startup
// and must not be modified once requests are being served.
type Registry struct {
	providers map[models.ProviderName]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.ProviderName]Provider)}
}

// NewRegistryFromConfig registers every provider that has a client id
func NewRegistryFromConfig(cfg *config.OAuthConfig) (*Registry, error) {
	r := NewRegistry()
	if !cfg.Enabled {
		return r, nil
	}
	for name, pc := range cfg.EnabledProviders() {
		if _, err := r.RegisterConfig(models.ProviderName(name), pc, cfg.HTTPTimeout); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p, replacing any provider with the same name
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// RegisterConfig builds the client for name from cfg and registers it
func (r *Registry) RegisterConfig(name models.ProviderName, cfg config.ProviderConfig, timeout time.Duration) (Provider, error) {
	build, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProviderNotFound, name)
	}
	p, err := build(cfg, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", name, err)
	}
	r.Register(p)
	logger.Info("Registered login provider", zap.String("provider", name.String()))
	return p, nil
}

// Lookup returns the provider registered under name
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[models.ProviderName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrProviderNotFound, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []models.ProviderName {
	names := make([]models.ProviderName, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	return len(r.providers)
}
