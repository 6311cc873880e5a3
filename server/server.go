package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/providers"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/storage"
	"github.com/giantswarm/mcp-gate/token"
)

// AllowPolicy decides whether a verified identity (an email) may receive
// tokens.
type AllowPolicy func(identity string) bool

// AllowEmail admits exactly one email address. An empty address admits nobody.
func AllowEmail(addr string) AllowPolicy {
	want := strings.TrimSpace(addr)
	return func(identity string) bool {
		return want != "" && identity == want
	}
}

// Server implements the authorization flow: authorize, provider callback,
// token grants and client registration. It keeps no state between requests;
// everything lives in the credential store.
type Server struct {
	provider providers.Provider
	store    *storage.CredentialStore
	issuer   *token.Issuer
	allow    AllowPolicy

	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	Logger *slog.Logger
	Config *Config
}

// New creates a new flow controller
func New(
	provider providers.Provider,
	store *storage.CredentialStore,
	issuer *token.Issuer,
	allow AllowPolicy,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if allow == nil {
		return nil, fmt.Errorf("allow policy is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		provider: provider,
		store:    store,
		issuer:   issuer,
		allow:    allow,
		tracer:   tracenoop.NewTracerProvider().Tracer(""),
		Logger:   logger,
		Config:   applyDefaults(config),
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetInstrumentation enables spans and metrics for flow operations
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.Instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
	}
}

// Issuer returns the token issuer, shared with the bearer middleware.
func (s *Server) Issuer() *token.Issuer {
	return s.issuer
}

func (s *Server) now() time.Time {
	return s.Config.Clock()
}

func (s *Server) metrics() *instrumentation.Metrics {
	return s.Instrumentation.Metrics()
}

// fail logs e, marks the span and returns e. Client errors log at Warn;
// server errors log their cause at Error.
func (s *Server) fail(ctx context.Context, span trace.Span, op string, e *Error) error {
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrErrorKind, e.Kind.String()))
	instrumentation.RecordError(span, e)

	attrs := []any{"operation", op, "kind", e.Kind.String(), "message", e.Message}
	if e.Kind.IsServerError() {
		if e.Err != nil {
			attrs = append(attrs, "error", e.Err)
		}
		s.Logger.ErrorContext(ctx, "OAuth operation failed", attrs...)
	} else {
		s.Logger.WarnContext(ctx, "OAuth request rejected", attrs...)
	}
	return e
}

// generateCode returns an unguessable authorization code.
func generateCode() string {
	return oauth2.GenerateVerifier()
}
