package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	oauth "github.com/giantswarm/mcp-gate"
	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/security"
)

// Setting keys. Each is a flag name and, upper-cased with "_" for "-", an
// environment variable.
const (
	keyBaseURL                  = "base-url"
	keyGoogleClientID           = "google-client-id"
	keyGoogleClientSecret       = "google-client-secret"
	keyJWTSecret                = "jwt-secret"
	keyAllowedEmail             = "allowed-email"
	keyPort                     = "port"
	keyStorageBackend           = "storage-backend"
	keyStorageAddr              = "storage-addr"
	keyStoragePassword          = "storage-password"
	keyStoragePrefix            = "storage-prefix"
	keySQLitePath               = "sqlite-path"
	keyEncryptionKey            = "encryption-key"
	keyRateLimitRPS             = "rate-limit-rps"
	keyRateLimitBurst           = "rate-limit-burst"
	keyTrustProxy               = "trust-proxy"
	keyAuditLog                 = "audit-log"
	keyEnforceRegisteredClients = "enforce-registered-clients"
	keyValidateRedirectURIs     = "validate-redirect-uris"
	keyMetrics                  = "metrics"
	keyLogLevel                 = "log-level"
	keyLogFormat                = "log-format"
)

// Storage backends
const (
	backendMemory = "memory"
	backendValkey = "valkey"
	backendRedis  = "redis"
	backendSQLite = "sqlite"
)

// upstreamHTTPTimeout bounds every call to Google.
const upstreamHTTPTimeout = 30 * time.Second

// settings is the resolved configuration of the serve command.
type settings struct {
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	JWTSecret          string
	AllowedEmail       string
	Port               int

	StorageBackend  string
	StorageAddr     string
	StoragePassword string
	StoragePrefix   string
	SQLitePath      string

	EncryptionKey            string
	RateLimitRPS             float64
	RateLimitBurst           int
	TrustProxy               bool
	AuditLog                 bool
	EnforceRegisteredClients bool
	ValidateRedirectURIs     bool
	Metrics                  bool
}

func loadSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		BaseURL:                  strings.TrimSpace(v.GetString(keyBaseURL)),
		GoogleClientID:           v.GetString(keyGoogleClientID),
		GoogleClientSecret:       v.GetString(keyGoogleClientSecret),
		JWTSecret:                v.GetString(keyJWTSecret),
		AllowedEmail:             strings.TrimSpace(v.GetString(keyAllowedEmail)),
		Port:                     v.GetInt(keyPort),
		StorageBackend:           strings.ToLower(v.GetString(keyStorageBackend)),
		StorageAddr:              v.GetString(keyStorageAddr),
		StoragePassword:          v.GetString(keyStoragePassword),
		StoragePrefix:            v.GetString(keyStoragePrefix),
		SQLitePath:               v.GetString(keySQLitePath),
		EncryptionKey:            v.GetString(keyEncryptionKey),
		RateLimitRPS:             v.GetFloat64(keyRateLimitRPS),
		RateLimitBurst:           v.GetInt(keyRateLimitBurst),
		TrustProxy:               v.GetBool(keyTrustProxy),
		AuditLog:                 v.GetBool(keyAuditLog),
		EnforceRegisteredClients: v.GetBool(keyEnforceRegisteredClients),
		ValidateRedirectURIs:     v.GetBool(keyValidateRedirectURIs),
		Metrics:                  v.GetBool(keyMetrics),
	}

	required := []struct {
		key   string
		value string
	}{
		{keyGoogleClientID, s.GoogleClientID},
		{keyGoogleClientSecret, s.GoogleClientSecret},
		{keyJWTSecret, s.JWTSecret},
		{keyAllowedEmail, s.AllowedEmail},
		{keyBaseURL, s.BaseURL},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, envName(r.key))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if s.Port <= 0 || s.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: %d", envName(keyPort), s.Port)
	}
	switch s.StorageBackend {
	case backendMemory, backendSQLite:
	case backendValkey, backendRedis:
		if s.StorageAddr == "" {
			return nil, fmt.Errorf("%s is required for the %s backend", envName(keyStorageAddr), s.StorageBackend)
		}
	default:
		return nil, fmt.Errorf("unknown %s %q: want memory, valkey, redis or sqlite", envName(keyStorageBackend), s.StorageBackend)
	}
	if s.StorageBackend == backendSQLite && s.SQLitePath == "" {
		return nil, fmt.Errorf("%s is required for the sqlite backend", envName(keySQLitePath))
	}
	return s, nil
}

// gateConfig translates settings into the library configuration.
func (s *settings) gateConfig(logger *slog.Logger, inst *instrumentation.Instrumentation) (*oauth.Config, error) {
	var key []byte
	if s.EncryptionKey != "" {
		var err error
		if key, err = security.KeyFromBase64(s.EncryptionKey); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envName(keyEncryptionKey), err)
		}
	}

	return &oauth.Config{
		BaseURL: s.BaseURL,
		Google: oauth.GoogleConfig{
			ClientID:     s.GoogleClientID,
			ClientSecret: s.GoogleClientSecret,
		},
		JWTSecret:    s.JWTSecret,
		AllowedEmail: s.AllowedEmail,
		Security: oauth.SecurityConfig{
			EncryptionKey:            key,
			EnableAuditLogging:       s.AuditLog,
			EnforceRegisteredClients: s.EnforceRegisteredClients,
			ValidateRedirectURIs:     s.ValidateRedirectURIs,
			TrustProxy:               s.TrustProxy,
		},
		RateLimit: oauth.RateLimitConfig{
			Rate:  s.RateLimitRPS,
			Burst: s.RateLimitBurst,
		},
		Logger:          logger,
		HTTPClient:      &http.Client{Timeout: upstreamHTTPTimeout},
		Instrumentation: inst,
	}, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
