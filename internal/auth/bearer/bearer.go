package bearer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session-token claims issued by the identity provider
type Claims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
	Email           string `json:"email,omitempty"`
}

// Verifier validates bearer tokens against the identity provider's JWKS.
// Signature verification is unconditional.
type Verifier struct {
	keyfunc           jwt.Keyfunc
	parser            *jwt.Parser
	authorizedParties []string
}

// NewVerifier builds a verifier that resolves signing keys with kf
func NewVerifier(cfg *config.IdentityConfig, kf jwt.Keyfunc) (*Verifier, error) {
	if kf == nil {
		return nil, errors.New("keyfunc is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(constants.SupportedSigningAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{
		keyfunc:           kf,
		parser:            jwt.NewParser(opts...),
		authorizedParties: append([]string(nil), cfg.AuthorizedParties...),
	}, nil
}

// NewJWKSKeyfunc returns an auto-refreshing keyfunc for jwksURL. Unknown key
// ids trigger a rate-limited refresh. The refresh goroutine stops with ctx.
func NewJWKSKeyfunc(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url required")
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return kf.Keyfunc, nil
}

// Verify checks tok and returns the identity it carries. Every failure wraps
// models.ErrUnauthorized.
func (v *Verifier) Verify(_ context.Context, tok string) (*models.VerifiedIdentity, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: missing token", models.ErrUnauthorized)
	}

	var claims Claims
	parsed, err := v.parser.ParseWithClaims(tok, &claims, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", models.ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}

	if len(v.authorizedParties) > 0 && claims.AuthorizedParty != "" &&
		!slices.Contains(v.authorizedParties, claims.AuthorizedParty) {
		return nil, fmt.Errorf("%w: unauthorized party %q", models.ErrUnauthorized, claims.AuthorizedParty)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", models.ErrUnauthorized)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &models.VerifiedIdentity{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Email:     claims.Email,
		Issuer:    claims.Issuer,
		ExpiresAt: expiresAt,
		Token:     tok,
	}, nil
}
