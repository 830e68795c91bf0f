package constants

import "time"

const (
	// DefaultPort is the default port for the HTTP server
	DefaultPort = 8000

	// TokenType for Bearer authentication
	TokenType = "Bearer"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "

	// Realm advertised in WWW-Authenticate challenges
	Realm = "llm-server"

	// DefaultRedirect is used when no redirect_after_login was stashed
	DefaultRedirect = "/"
)

// Route paths
const (
	LoginPath    = "/login/{provider}"
	CallbackPath = "/auth/{provider}"
	LogoutPath   = "/logout"
	MePath       = "/me"
)

const (
	// StateBytes is the entropy of the anti-replay state token
	StateBytes = 32

	// PendingAuthTTL bounds how long a started login may wait for its callback
	PendingAuthTTL = 10 * time.Minute

	// UpstreamTimeout is the default timeout for provider and identity API calls
	UpstreamTimeout = 10 * time.Second
)

// Supported bearer signing algorithms
var SupportedSigningAlgs = []string{"RS256"}
