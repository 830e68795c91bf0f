package models

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound indicates an unknown provider in a login or callback path.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrAuthExchangeFailed indicates the upstream OAuth exchange did not produce a user.
	ErrAuthExchangeFailed = errors.New("authentication exchange failed")

	// ErrUnauthorized indicates a missing, malformed, unverifiable or expired bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstreamUnavailable indicates the identity provider API could not serve a lookup.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMissingSubject indicates a user record without a subject identifier.
	ErrMissingSubject = errors.New("user has no subject identifier")
)

// AuthError is returned by a failed login callback. Message is safe to show
// to the user.
type AuthError struct {
	Provider ProviderName
	Message  string
	Err      error
}

func NewAuthError(provider ProviderName, message string, err error) *AuthError {
	return &AuthError{Provider: provider, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s login failed: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s login failed: %s", e.Provider, e.Message)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthExchangeFailed}
	}
	return []error{ErrAuthExchangeFailed, e.Err}
}
