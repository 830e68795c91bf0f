package models

import "time"

// ProviderName identifies a login provider. Values match the {provider}
// path segment of the login and callback routes.
type ProviderName string

const (
	ProviderGoogle  ProviderName = "google"
	ProviderGitHub  ProviderName = "github"
	ProviderTwitter ProviderName = "twitter"
)

func (p ProviderName) String() string { return string(p) }

// UserInfo represents authenticated user information from any provider.
// It is captured once per login and never merged across providers.
type UserInfo struct {
	ID       string                 `json:"sub"`
	Email    string                 `json:"email,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Picture  string                 `json:"picture,omitempty"`
	Provider ProviderName           `json:"provider"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PendingAuth is the state of a login attempt between the redirect to the
// provider and the callback. It is single use.
type PendingAuth struct {
	Provider     ProviderName `json:"provider"`
	State        string       `json:"state,omitempty"`
	CodeVerifier string       `json:"code_verifier,omitempty"`
	// OAuth1 request-token flow
	RequestToken  string    `json:"request_token,omitempty"`
	RequestSecret string    `json:"request_secret,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// VerifiedIdentity is the result of a successful bearer token verification.
type VerifiedIdentity struct {
	UserID    string
	SessionID string
	Email     string
	Issuer    string
	ExpiresAt time.Time
	Token     string
}

// UserDetail is the upstream identity provider's view of a user.
type UserDetail struct {
	ID                    string         `json:"id"`
	Username              string         `json:"username,omitempty"`
	FirstName             string         `json:"first_name,omitempty"`
	LastName              string         `json:"last_name,omitempty"`
	ImageURL              string         `json:"image_url,omitempty"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id,omitempty"`
	EmailAddresses        []EmailAddress `json:"email_addresses,omitempty"`
	CreatedAt             int64          `json:"created_at,omitempty"`
	LastSignInAt          int64          `json:"last_sign_in_at,omitempty"`
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// PrimaryEmail returns the primary email address, or the first one when no
// primary is marked.
func (u *UserDetail) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}
