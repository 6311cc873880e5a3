package oauth

import (
	"strings"
	"testing"

	"github.com/giantswarm/mcp-gate/instrumentation"
	providermock "github.com/giantswarm/mcp-gate/providers/mock"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/storage/memory"
)

func TestNew(t *testing.T) {
	store := memory.New()

	srv, err := New(validConfig(), store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Close()

	if srv.Flow == nil || srv.Issuer == nil || srv.Auditor == nil {
		t.Errorf("New() = %+v, want flow, issuer and auditor wired", srv)
	}
	if srv.RateLimiter != nil {
		t.Error("RateLimiter should be nil when Rate is zero")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, memory.New()); err == nil {
		t.Error("New(nil config) error = nil, want error")
	}
	if _, err := New(validConfig(), nil); err == nil {
		t.Error("New(nil backend) error = nil, want error")
	}

	cfg := validConfig()
	cfg.JWTSecret = "too-short"
	if _, err := New(cfg, memory.New()); err == nil || !strings.Contains(err.Error(), "JWT secret") {
		t.Errorf("New(short secret) error = %v, want JWT secret error", err)
	}
}

func TestNew_OptionalCollaborators(t *testing.T) {
	key, err := security.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	inst, err := instrumentation.New(instrumentation.Config{Enabled: true})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}

	cfg := validConfig()
	cfg.Google = GoogleConfig{}
	cfg.Provider = providermock.NewMockProvider()
	cfg.Security.EncryptionKey = key
	cfg.Security.EnableAuditLogging = true
	cfg.RateLimit.Rate = 5
	cfg.Instrumentation = inst

	srv, err := New(cfg, memory.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Close()

	if srv.RateLimiter == nil {
		t.Fatal("RateLimiter = nil, want limiter when Rate > 0")
	}
	if got := srv.RateLimiter.GetStats().MaxEntries; got <= 0 {
		t.Errorf("MaxEntries = %d, want positive", got)
	}
	if srv.Instrumentation != inst {
		t.Error("Instrumentation not propagated")
	}
}
