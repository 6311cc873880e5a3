package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider is an upstream OAuth identity provider.
type Provider interface {
	// Name returns the provider name (e.g., "google")
	Name() string

	// AuthorizationURL returns the consent screen URL. state is echoed back
	// unchanged on the provider callback.
	AuthorizationURL(state string) string

	// ExchangeCode exchanges the code from the provider callback for tokens.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// Identity verifies the tokens returned by ExchangeCode and returns the
	// authenticated identity.
	Identity(ctx context.Context, token *oauth2.Token) (*Identity, error)
}

// Identity is a verified upstream identity.
type Identity struct {
	// Subject is the provider's stable user identifier
	Subject string

	// Email is the verified email address; the gate uses it as the user ID
	Email string

	// EmailVerified is false only when the provider says so explicitly
	EmailVerified bool

	Name string
}
