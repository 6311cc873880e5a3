package oauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/providers"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/token"
)

// Config holds the gate configuration
type Config struct {
	// BaseURL is the public URL of this server. The Google redirect URL is
	// BaseURL + /oauth/google/callback.
	BaseURL string

	// Google OAuth client credentials
	Google GoogleConfig

	// JWTSecret signs access and refresh tokens. At least 32 bytes.
	JWTSecret string

	// AllowedEmail is the only identity that receives tokens
	AllowedEmail string

	// Security settings
	Security SecurityConfig

	// Rate limiting for /oauth/token and /oauth/register
	RateLimit RateLimitConfig

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is used for calls to Google (optional)
	HTTPClient *http.Client

	// Provider replaces the Google provider. Used by tests and embedders.
	Provider providers.Provider

	// Instrumentation enables metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation
}

// GoogleConfig holds the Google OAuth client credentials
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// EncryptionKey encrypts upstream tokens at rest (32 bytes).
	// Nil disables encryption.
	EncryptionKey []byte

	// EnableAuditLogging logs security events with hashed identities
	EnableAuditLogging bool

	// EnforceRegisteredClients rejects authorize requests from unregistered
	// clients or with unregistered redirect URIs
	EnforceRegisteredClients bool

	// ValidateRedirectURIs rejects relative, fragment-bearing and script-scheme
	// redirect URIs at authorize and registration. Default: false
	ValidateRedirectURIs bool

	// TrustProxy reads the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool
}

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second per client IP. Zero disables limiting.
	Rate float64

	// Burst is the maximum burst per client IP. Default: 10
	Burst int
}

const defaultRateLimitBurst = 10

// Validate checks that every required value is present.
func (c *Config) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "BaseURL")
	}
	if c.Provider == nil {
		if c.Google.ClientID == "" {
			missing = append(missing, "Google.ClientID")
		}
		if c.Google.ClientSecret == "" {
			missing = append(missing, "Google.ClientSecret")
		}
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWTSecret")
	}
	if strings.TrimSpace(c.AllowedEmail) == "" {
		missing = append(missing, "AllowedEmail")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if len(c.JWTSecret) < token.MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", token.MinSecretLength)
	}
	if n := len(c.Security.EncryptionKey); n != 0 && n != security.KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", security.KeySize, n)
	}
	if c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values cannot be negative")
	}
	return nil
}

func (c *Config) rateLimitBurst() int {
	if c.RateLimit.Burst > 0 {
		return c.RateLimit.Burst
	}
	return defaultRateLimitBurst
}
