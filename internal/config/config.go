package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("llm-server version %s, commit %s, built at %s", version, commit, date)
}

// Provider names accepted under oauth.providers.
const (
	ProviderGoogle  = "google"
	ProviderGitHub  = "github"
	ProviderTwitter = "twitter"
)

// Session backends
const (
	SessionBackendCookie = "cookie"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Identity IdentityConfig `mapstructure:"identity"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=0,max=65535"`
	Host              string        `mapstructure:"host"`
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	LoginPage         string        `mapstructure:"login_page" validate:"required,startswith=/"`
	ProtectedPrefixes []string      `mapstructure:"protected_prefixes" validate:"dive,startswith=/"`
	AllowOrigins      []string      `mapstructure:"allow_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// SessionConfig controls the cookie-backed session store.
// Secret signs the cookie; EncryptionKey, when set, also encrypts it (16, 24 or 32 bytes).
type SessionConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=cookie redis"`
	CookieName    string        `mapstructure:"cookie_name" validate:"required"`
	Secret        string        `mapstructure:"secret" validate:"required,min=32"`
	EncryptionKey string        `mapstructure:"encryption_key" validate:"omitempty,len=16|len=24|len=32"`
	MaxAge        time.Duration `mapstructure:"max_age" validate:"gt=0"`
	Secure        bool          `mapstructure:"secure"`
	RedisURL      string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type OAuthConfig struct {
	Enabled     bool                      `mapstructure:"enabled"`
	HTTPTimeout time.Duration             `mapstructure:"http_timeout" validate:"gt=0"`
	Providers   map[string]ProviderConfig `mapstructure:"providers" validate:"dive,keys,oneof=google github twitter,endkeys"`
}

// ProviderConfig describes one upstream login provider. A provider is only
// registered when ClientID is set.
type ProviderConfig struct {
	ClientID        string   `mapstructure:"client_id"`
	ClientSecret    string   `mapstructure:"client_secret" validate:"required_with=ClientID"`
	AuthorizeURL    string   `mapstructure:"authorize_url" validate:"required_with=ClientID,omitempty,url"`
	TokenURL        string   `mapstructure:"token_url" validate:"required_with=ClientID,omitempty,url"`
	APIBaseURL      string   `mapstructure:"api_base_url" validate:"required_with=ClientID,omitempty,url"`
	UserInfoURL     string   `mapstructure:"userinfo_url" validate:"omitempty,url"`
	JWKSURL         string   `mapstructure:"jwks_url" validate:"omitempty,url"`
	Issuer          string   `mapstructure:"issuer"`
	RequestTokenURL string   `mapstructure:"request_token_url" validate:"omitempty,url"`
	Scopes          []string `mapstructure:"scopes"`
}

// IdentityConfig configures the bearer-token path against a hosted identity provider.
type IdentityConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	SecretKey         string        `mapstructure:"secret_key" validate:"required_if=Enabled true"`
	APIBaseURL        string        `mapstructure:"api_base_url" validate:"required_if=Enabled true,omitempty,url"`
	JWKSURL           string        `mapstructure:"jwks_url" validate:"required_if=Enabled true,omitempty,url"`
	Issuer            string        `mapstructure:"issuer"`
	AuthorizedParties []string      `mapstructure:"authorized_parties"`
	Leeway            time.Duration `mapstructure:"leeway" validate:"gte=0"`
	CacheSize         int           `mapstructure:"cache_size" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// EnabledProviders returns the configured providers that have a client id.
func (c *OAuthConfig) EnabledProviders() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		if p.ClientID != "" {
			out[name] = p
		}
	}
	return out
}

var providerDefaults = map[string]ProviderConfig{
	ProviderGoogle: {
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		APIBaseURL:   "https://www.googleapis.com/",
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		JWKSURL:      "https://www.googleapis.com/oauth2/v3/certs",
		Issuer:       "https://accounts.google.com",
		Scopes:       []string{"openid", "email", "profile"},
	},
	ProviderGitHub: {
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		APIBaseURL:   "https://api.github.com/",
		Scopes:       []string{"user:email"},
	},
	ProviderTwitter: {
		AuthorizeURL:    "https://api.twitter.com/oauth/authorize",
		TokenURL:        "https://api.twitter.com/oauth/access_token",
		RequestTokenURL: "https://api.twitter.com/oauth/request_token",
		APIBaseURL:      "https://api.twitter.com/1.1/",
		Scopes:          []string{"users.read", "tweets.read"},
	},
}

// InitFlags registers command line flags on fs (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the config file")
	fs.Int("port", 8000, "Port to listen on")
	fs.String("host", "0.0.0.0", "Host to bind to")
	fs.String("base-url", "", "Public base URL used to build OAuth callback URLs")
	fs.String("log-level", "info", "Log level (debug|info|warn|error)")
}

func setDefaults() {
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.base_url", "")
	viper.SetDefault("server.login_page", "/login_page")
	viper.SetDefault("server.protected_prefixes", []string{"/protected/"})
	viper.SetDefault("server.allow_origins", []string{"http://localhost", "http://localhost:3000", "http://localhost:5173"})
	viper.SetDefault("server.read_header_timeout", 10*time.Second)
	viper.SetDefault("server.shutdown_timeout", 5*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	viper.SetDefault("session.backend", SessionBackendCookie)
	viper.SetDefault("session.cookie_name", "llm_session")
	viper.SetDefault("session.secret", "")
	viper.SetDefault("session.encryption_key", "")
	viper.SetDefault("session.max_age", 7*24*time.Hour)
	viper.SetDefault("session.secure", false)
	viper.SetDefault("session.redis_url", "")
	viper.SetDefault("session.key_prefix", "llm:session:")

	viper.SetDefault("oauth.enabled", true)
	viper.SetDefault("oauth.http_timeout", 10*time.Second)
	for name, p := range providerDefaults {
		prefix := "oauth.providers." + name + "."
		viper.SetDefault(prefix+"client_id", "")
		viper.SetDefault(prefix+"client_secret", "")
		viper.SetDefault(prefix+"authorize_url", p.AuthorizeURL)
		viper.SetDefault(prefix+"token_url", p.TokenURL)
		viper.SetDefault(prefix+"api_base_url", p.APIBaseURL)
		viper.SetDefault(prefix+"userinfo_url", p.UserInfoURL)
		viper.SetDefault(prefix+"jwks_url", p.JWKSURL)
		viper.SetDefault(prefix+"issuer", p.Issuer)
		viper.SetDefault(prefix+"request_token_url", p.RequestTokenURL)
		viper.SetDefault(prefix+"scopes", p.Scopes)
	}

	viper.SetDefault("identity.enabled", false)
	viper.SetDefault("identity.secret_key", "")
	viper.SetDefault("identity.api_base_url", "https://api.clerk.com/v1")
	viper.SetDefault("identity.jwks_url", "")
	viper.SetDefault("identity.issuer", "")
	viper.SetDefault("identity.authorized_parties", []string{})
	viper.SetDefault("identity.leeway", 5*time.Second)
	viper.SetDefault("identity.cache_size", 100)
	viper.SetDefault("identity.timeout", 10*time.Second)
}

// Load reads configuration from defaults, an optional config.yaml, the
// environment (LLM_SERVER_ prefix, .env honoured) and flags, then validates it.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	viper.Reset() // Ensure clean state
	loadDotEnv()
	setDefaults()

	viper.SetEnvPrefix("LLM_SERVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	configFile := ""
	if fs != nil {
		for key, flag := range map[string]string{
			"server.port":     "port",
			"server.host":     "host",
			"server.base_url": "base-url",
			"logging.level":   "log-level",
		} {
			if f := fs.Lookup(flag); f != nil {
				if err := viper.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/llm-server")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Running from the environment alone is fine; an explicit --config is not optional
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyLegacyEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyLegacyEnv fills secrets from the environment names used by earlier
// deployments when the prefixed variables are not set.
func applyLegacyEnv(cfg *Config) {
	for name, p := range cfg.OAuth.Providers {
		upper := strings.ToUpper(name)
		if p.ClientID == "" {
			p.ClientID = os.Getenv("SOCIAL_AUTH_" + upper + "_CLIENT_ID")
		}
		if p.ClientSecret == "" {
			p.ClientSecret = os.Getenv("SOCIAL_AUTH_" + upper + "_CLIENT_SECRET")
		}
		cfg.OAuth.Providers[name] = p
	}
	if cfg.Identity.SecretKey == "" {
		cfg.Identity.SecretKey = os.Getenv("CLERK_SECRET_KEY")
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-section rules that tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.OAuth.Enabled {
		enabled := c.OAuth.EnabledProviders()
		if len(enabled) == 0 {
			return fmt.Errorf("oauth is enabled but no provider has a client_id, set LLM_SERVER_OAUTH_PROVIDERS_<NAME>_CLIENT_ID or disable oauth")
		}
		if tw, ok := enabled[ProviderTwitter]; ok && tw.RequestTokenURL == "" {
			return fmt.Errorf("oauth.providers.twitter.request_token_url is required")
		}
	}

	if !c.OAuth.Enabled && !c.Identity.Enabled {
		return fmt.Errorf("nothing to serve: enable oauth or identity")
	}
	return nil
}

// Module exposes the config sections to the rest of the application.
// The root *Config is supplied by the caller.
var Module = fx.Module("config",
	fx.Provide(
		func(c *Config) *ServerConfig { return &c.Server },
		func(c *Config) *LoggingConfig { return &c.Logging },
		func(c *Config) *SessionConfig { return &c.Session },
		func(c *Config) *OAuthConfig { return &c.OAuth },
		func(c *Config) *IdentityConfig { return &c.Identity },
	),
)

func loadDotEnv() {
	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = ".env"
	}
	// Missing .env is the normal case when the environment is injected
	_ = godotenv.Load(envFile)
}
