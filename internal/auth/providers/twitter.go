package providers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/dghubble/oauth1"
)

// TwitterProvider runs the OAuth 1.0a request-token flow
type TwitterProvider struct {
	config     *oauth1.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewTwitterProvider builds the Twitter OAuth1 provider. Scopes do not apply to OAuth1.
func NewTwitterProvider(cfg config.ProviderConfig, client *http.Client) (Provider, error) {
	if cfg.RequestTokenURL == "" {
		return nil, fmt.Errorf("request token url is required")
	}
	return &TwitterProvider{
		config: &oauth1.Config{
			ConsumerKey:    cfg.ClientID,
			ConsumerSecret: cfg.ClientSecret,
			HTTPClient:     client,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: cfg.RequestTokenURL,
				AuthorizeURL:    cfg.AuthorizeURL,
				AccessTokenURL:  cfg.TokenURL,
			},
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: client,
	}, nil
}

func (p *TwitterProvider) Name() models.ProviderName {
	return models.ProviderTwitter
}

// BeginLogin obtains a request token and returns the authorization URL
func (p *TwitterProvider) BeginLogin(_ context.Context, callbackURL string) (string, *models.PendingAuth, error) {
	cfg := *p.config // copy
	cfg.CallbackURL = callbackURL

	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to obtain request token: %w", err)
	}
	authURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build authorization url: %w", err)
	}

	return authURL.String(), &models.PendingAuth{
		Provider:      models.ProviderTwitter,
		RequestToken:  requestToken,
		RequestSecret: requestSecret,
		CreatedAt:     time.Now(),
	}, nil
}

func (p *TwitterProvider) CompleteLogin(ctx context.Context, r *http.Request, pending *models.PendingAuth, callbackURL string) (*models.UserInfo, error) {
	name := models.ProviderTwitter

	if r.URL.Query().Get("denied") != "" {
		return nil, models.NewAuthError(name, "access_denied", nil)
	}
	if pending == nil || pending.Provider != name {
		return nil, models.NewAuthError(name, "no login in progress", nil)
	}

	requestToken, verifier, err := oauth1.ParseAuthorizationCallback(r)
	if err != nil {
		return nil, models.NewAuthError(name, "invalid callback", err)
	}
	if subtle.ConstantTimeCompare([]byte(requestToken), []byte(pending.RequestToken)) != 1 {
		return nil, models.NewAuthError(name, "invalid state", nil)
	}

	cfg := *p.config // copy
	cfg.CallbackURL = callbackURL
	accessToken, accessSecret, err := cfg.AccessToken(requestToken, pending.RequestSecret, verifier)
	if err != nil {
		return nil, models.NewAuthError(name, "token exchange failed", err)
	}

	// oauth1 keeps only the transport of the context client, so the timeout is reapplied
	signed := cfg.Client(context.WithValue(ctx, oauth1.HTTPClient, p.httpClient), oauth1.NewToken(accessToken, accessSecret))
	client := &http.Client{Transport: signed.Transport, Timeout: p.httpClient.Timeout}

	var tw struct {
		ID         string `json:"id_str"`
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		Email      string `json:"email"`
		ImageURL   string `json:"profile_image_url_https"`
	}
	if err := getJSON(ctx, client, p.apiBaseURL+"/account/verify_credentials.json?include_email=true&skip_status=true", &tw); err != nil {
		return nil, models.NewAuthError(name, "failed to fetch user info", err)
	}
	if tw.ID == "" {
		return nil, models.NewAuthError(name, "provider returned no subject", models.ErrMissingSubject)
	}

	return &models.UserInfo{
		ID:       tw.ID,
		Email:    tw.Email,
		Name:     tw.Name,
		Picture:  tw.ImageURL,
		Provider: name,
		Metadata: map[string]interface{}{
			"screen_name": tw.ScreenName,
		},
	}, nil
}
