package providers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// userFetcher turns an exchanged token into a normalized user
type userFetcher func(ctx context.Context, client *http.Client, token *oauth2.Token) (*models.UserInfo, error)

// OAuth2Provider runs the authorization-code flow with PKCE against one provider
type OAuth2Provider struct {
	name         models.ProviderName
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	fetchUser    userFetcher
}

func newOAuth2Provider(name models.ProviderName, cfg *oauth2.Config, client *http.Client, fetch userFetcher) *OAuth2Provider {
	return &OAuth2Provider{
		name:         name,
		oauth2Config: cfg,
		httpClient:   client,
		fetchUser:    fetch,
	}
}

func (p *OAuth2Provider) Name() models.ProviderName {
	return p.name
}

func (p *OAuth2Provider) BeginLogin(_ context.Context, callbackURL string) (string, *models.PendingAuth, error) {
	state, err := randomToken(constants.StateBytes)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	cfg := *p.oauth2Config // copy
	cfg.RedirectURL = callbackURL

	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authURL, &models.PendingAuth{
		Provider:     p.name,
		State:        state,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
	}, nil
}

func (p *OAuth2Provider) CompleteLogin(ctx context.Context, r *http.Request, pending *models.PendingAuth, callbackURL string) (*models.UserInfo, error) {
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		msg := e
		if desc := q.Get("error_description"); desc != "" {
			msg = e + ": " + desc
		}
		return nil, models.NewAuthError(p.name, msg, nil)
	}
	if pending == nil || pending.Provider != p.name {
		return nil, models.NewAuthError(p.name, "no login in progress", nil)
	}
	if state := q.Get("state"); state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(pending.State)) != 1 {
		return nil, models.NewAuthError(p.name, "invalid state", nil)
	}
	code := q.Get("code")
	if code == "" {
		return nil, models.NewAuthError(p.name, "missing authorization code", nil)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	cfg := *p.oauth2Config // copy
	cfg.RedirectURL = callbackURL

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, models.NewAuthError(p.name, re.ErrorCode, err)
		}
		return nil, models.NewAuthError(p.name, "token exchange failed", err)
	}

	user, err := p.fetchUser(ctx, cfg.Client(ctx, token), token)
	if err != nil {
		return nil, models.NewAuthError(p.name, "failed to fetch user info", err)
	}
	if user.ID == "" {
		return nil, models.NewAuthError(p.name, "provider returned no subject", models.ErrMissingSubject)
	}
	user.Provider = p.name
	return user, nil
}

// getJSON fetches url with client and decodes a 200 response into dst
func getJSON(ctx context.Context, client *http.Client, url string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// randomToken returns a base64url-encoded random string of n bytes
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
