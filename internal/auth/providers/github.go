package providers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// NewGitHubProvider builds the GitHub OAuth2 provider
func NewGitHubProvider(cfg config.ProviderConfig, client *http.Client) (Provider, error) {
	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthorizeURL,
			TokenURL: cfg.TokenURL,
		},
		Scopes: cfg.Scopes,
	}
	return newOAuth2Provider(models.ProviderGitHub, oauth2Cfg, client, githubUser(cfg.APIBaseURL)), nil
}

func githubUser(apiBaseURL string) userFetcher {
	base := strings.TrimRight(apiBaseURL, "/")
	return func(ctx context.Context, client *http.Client, _ *oauth2.Token) (*models.UserInfo, error) {
		var gh struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := getJSON(ctx, client, base+"/user", &gh); err != nil {
			return nil, err
		}

		email := gh.Email
		if email == "" {
			// Private emails are only listed with the user:email scope
			var emails []struct {
				Email    string `json:"email"`
				Primary  bool   `json:"primary"`
				Verified bool   `json:"verified"`
			}
			if err := getJSON(ctx, client, base+"/user/emails", &emails); err != nil {
				logger.Warn("Failed to list GitHub emails", zap.Error(err))
			}
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}

		name := gh.Name
		if name == "" {
			name = gh.Login
		}

		user := &models.UserInfo{
			Email:   email,
			Name:    name,
			Picture: gh.AvatarURL,
			Metadata: map[string]interface{}{
				"login": gh.Login,
			},
		}
		if gh.ID != 0 {
			user.ID = strconv.FormatInt(gh.ID, 10)
		}
		return user, nil
	}
}
