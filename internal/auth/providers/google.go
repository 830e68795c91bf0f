package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (c *googleClaims) userInfo() *models.UserInfo {
	return &models.UserInfo{
		ID:      c.Sub,
		Email:   c.Email,
		Name:    c.Name,
		Picture: c.Picture,
		Metadata: map[string]interface{}{
			"email_verified": c.EmailVerified,
		},
	}
}

// NewGoogleProvider builds the Google OIDC provider. The id_token is checked
// against the configured JWKS; no discovery request is made at startup.
func NewGoogleProvider(cfg config.ProviderConfig, client *http.Client) (Provider, error) {
	var verifier *oidc.IDTokenVerifier
	if cfg.JWKSURL != "" {
		keyCtx := oidc.ClientContext(context.Background(), client)
		keySet := oidc.NewRemoteKeySet(keyCtx, cfg.JWKSURL)
		verifier = oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{ClientID: cfg.ClientID})
	}

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthorizeURL,
			TokenURL: cfg.TokenURL,
		},
		Scopes: cfg.Scopes,
	}

	return newOAuth2Provider(models.ProviderGoogle, oauth2Cfg, client, googleUser(verifier, cfg.UserInfoURL)), nil
}

func googleUser(verifier *oidc.IDTokenVerifier, userInfoURL string) userFetcher {
	return func(ctx context.Context, client *http.Client, token *oauth2.Token) (*models.UserInfo, error) {
		if rawIDToken, ok := token.Extra("id_token").(string); ok && verifier != nil {
			idToken, err := verifier.Verify(ctx, rawIDToken)
			if err != nil {
				return nil, fmt.Errorf("failed to verify ID token: %w", err)
			}
			var claims googleClaims
			if err := idToken.Claims(&claims); err != nil {
				return nil, fmt.Errorf("failed to parse claims: %w", err)
			}
			return claims.userInfo(), nil
		}

		if userInfoURL == "" {
			return nil, fmt.Errorf("no id_token in token response and no userinfo endpoint configured")
		}
		logger.Debug("No verifiable id_token, calling userinfo endpoint", zap.String("url", userInfoURL))

		var claims googleClaims
		if err := getJSON(ctx, client, userInfoURL, &claims); err != nil {
			return nil, err
		}
		return claims.userInfo(), nil
	}
}
