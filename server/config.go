package server

import (
	"time"
)

// Config holds flow controller configuration
type Config struct {
	// PendingAuthorizationTTL is how long a client state waits for the provider callback
	PendingAuthorizationTTL time.Duration // default: 10m

	// AuthorizationCodeTTL is how long an issued code can be redeemed
	AuthorizationCodeTTL time.Duration // default: 10m

	// UpstreamTokenFallbackTTL stamps upstream credentials whose token
	// response carried no expiry
	UpstreamTokenFallbackTTL time.Duration // default: 1h

	// EnforceRegisteredClients makes /authorize reject unknown client_ids and
	// redirect URIs that were not registered. Off by default: MCP clients
	// commonly skip registration.
	EnforceRegisteredClients bool

	// ValidateRedirectURIs rejects relative, fragment-bearing and script-scheme
	// redirect URIs at /authorize and requires at least one valid URI at
	// /register. Off by default: any redirect_uri string is accepted.
	ValidateRedirectURIs bool

	// Clock is read once per operation. Default: time.Now
	Clock func() time.Time
}

const (
	defaultPendingAuthorizationTTL  = 10 * time.Minute
	defaultAuthorizationCodeTTL     = 10 * time.Minute
	defaultUpstreamTokenFallbackTTL = time.Hour
)

// applyDefaults returns a copy of config with zero values replaced.
func applyDefaults(config *Config) *Config {
	c := *config
	if c.PendingAuthorizationTTL <= 0 {
		c.PendingAuthorizationTTL = defaultPendingAuthorizationTTL
	}
	if c.AuthorizationCodeTTL <= 0 {
		c.AuthorizationCodeTTL = defaultAuthorizationCodeTTL
	}
	if c.UpstreamTokenFallbackTTL <= 0 {
		c.UpstreamTokenFallbackTTL = defaultUpstreamTokenFallbackTTL
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return &c
}
