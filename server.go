package oauth

import (
	"fmt"
	"log/slog"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/internal/util"
	"github.com/giantswarm/mcp-gate/providers"
	"github.com/giantswarm/mcp-gate/providers/google"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/server"
	"github.com/giantswarm/mcp-gate/storage"
	"github.com/giantswarm/mcp-gate/token"
)

// Server bundles the flow controller with the collaborators the HTTP layer
// needs: token verification, rate limiting, auditing and instrumentation.
type Server struct {
	Flow            *server.Server
	Issuer          *token.Issuer
	RateLimiter     *security.RateLimiter
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation
	Logger          *slog.Logger
	Config          *Config
}

// instrumentable is implemented by backends that emit storage metrics.
type instrumentable interface {
	SetInstrumentation(inst *instrumentation.Instrumentation)
}

// New wires a gate over backend. The backend is not owned by the Server;
// the caller closes it.
func New(cfg *Config, backend storage.Store) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("storage backend is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inst := cfg.Instrumentation

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	if ib, ok := backend.(instrumentable); ok && inst != nil {
		ib.SetInstrumentation(inst)
	}
	store := storage.NewCredentialStore(backend, logger)
	if len(cfg.Security.EncryptionKey) > 0 {
		enc, err := security.NewEncryptor(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		store.SetEncryptor(enc)
	}

	issuer, err := token.NewIssuer([]byte(cfg.JWTSecret), token.WithIssuer(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	flow, err := server.New(provider, store, issuer, server.AllowEmail(cfg.AllowedEmail), &server.Config{
		EnforceRegisteredClients: cfg.Security.EnforceRegisteredClients,
		ValidateRedirectURIs:     cfg.Security.ValidateRedirectURIs,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow controller: %w", err)
	}

	auditor := security.NewAuditor(logger, cfg.Security.EnableAuditLogging)
	auditor.SetInstrumentation(inst)
	flow.SetAuditor(auditor)
	if inst != nil {
		flow.SetInstrumentation(inst)
	}

	s := &Server{
		Flow:            flow,
		Issuer:          issuer,
		Auditor:         auditor,
		Instrumentation: inst,
		Logger:          logger,
		Config:          cfg,
	}
	if cfg.RateLimit.Rate > 0 {
		s.RateLimiter = security.NewRateLimiter(cfg.RateLimit.Rate, cfg.rateLimitBurst(), logger)
	}

	logger.Info("OAuth gate configured",
		"base_url", cfg.BaseURL,
		"provider", provider.Name(),
		"allowed_user", util.MaskEmail(cfg.AllowedEmail),
		"rate_limit", cfg.RateLimit.Rate,
		"audit", cfg.Security.EnableAuditLogging)
	return s, nil
}

func newProvider(cfg *Config) (providers.Provider, error) {
	if cfg.Provider != nil {
		return cfg.Provider, nil
	}
	p, err := google.NewProvider(&google.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  util.JoinURL(cfg.BaseURL, google.CallbackPath),
		HTTPClient:   cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google provider: %w", err)
	}
	return p, nil
}

// Close stops background work owned by the Server.
func (s *Server) Close() {
	if s.RateLimiter != nil {
		s.RateLimiter.Stop()
	}
}
