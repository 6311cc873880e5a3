package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/giantswarm/mcp-gate/providers"
)

const (
	// Issuer is the issuer Google puts in its ID tokens.
	Issuer = "https://accounts.google.com"

	// JWKSURL serves the keys Google signs ID tokens with.
	JWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	// CallbackPath is appended to the service base URL to form the redirect URL.
	CallbackPath = "/oauth/google/callback"

	defaultHTTPTimeout = 30 * time.Second
)

// DefaultScopes are requested on every authorization.
var DefaultScopes = []string{"email", "profile"}

// ErrEmailMissing is returned when a verified ID token carries no email claim.
var ErrEmailMissing = errors.New("id_token has no email claim")

// ErrEmailNotVerified is returned when Google reports the email as unverified.
var ErrEmailNotVerified = errors.New("email address is not verified")

// Provider implements the providers.Provider interface for Google OAuth.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	verifier   *oidc.IDTokenVerifier
}

// Config holds Google OAuth configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client // Optional custom HTTP client

	// Endpoint overrides google.Endpoint. Used by tests.
	Endpoint *oauth2.Endpoint

	// Verifier overrides the remote JWKS ID token verifier. Used by tests.
	Verifier *oidc.IDTokenVerifier
}

// NewProvider creates a new Google OAuth provider
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	verifier := cfg.Verifier
	if verifier == nil {
		keyCtx := oidc.ClientContext(context.Background(), httpClient)
		verifier = oidc.NewVerifier(Issuer, oidc.NewRemoteKeySet(keyCtx, JWKSURL), &oidc.Config{
			ClientID: cfg.ClientID,
		})
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       DefaultScopes,
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
		verifier:   verifier,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "google"
}

// AuthorizationURL returns the Google consent URL. Offline access and a forced
// consent prompt make Google return a refresh token on every authorization.
func (p *Provider) AuthorizationURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode exchanges an authorization code for tokens
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	token, err := p.config.Exchange(providers.WithHTTPClient(ctx, p.httpClient), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// idClaims are the ID token claims the gate reads.
type idClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
}

// Identity verifies the id_token returned with token and extracts the email.
func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*providers.Identity, error) {
	raw, err := providers.RawIDToken(token)
	if err != nil {
		return nil, err
	}

	idToken, err := p.verifier.Verify(oidc.ClientContext(ctx, p.httpClient), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, ErrEmailMissing
	}

	verified := emailVerified(claims.EmailVerified)
	if !verified {
		return nil, ErrEmailNotVerified
	}

	return &providers.Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: verified,
		Name:          claims.Name,
	}, nil
}

// emailVerified interprets the email_verified claim. Google has sent it both
// as a boolean and as a string; an absent claim counts as verified.
func emailVerified(v any) bool {
	switch b := v.(type) {
	case nil:
		return true
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}
