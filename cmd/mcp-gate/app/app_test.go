package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"

	"github.com/giantswarm/mcp-gate/pkce"
)

func testViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set(keyPort, 8080)
	v.Set(keyStorageBackend, backendMemory)
	v.Set(keyBaseURL, "https://mcp.example.com")
	v.Set(keyGoogleClientID, "google-id")
	v.Set(keyGoogleClientSecret, "google-secret")
	v.Set(keyJWTSecret, strings.Repeat("j", 32))
	v.Set(keyAllowedEmail, "alice@example.com")
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{name: "defaults"},
		{name: "missing secrets", values: map[string]any{keyJWTSecret: "", keyAllowedEmail: ""}, wantErr: "JWT_SECRET, ALLOWED_EMAIL"},
		{name: "bad port", values: map[string]any{keyPort: 0}, wantErr: "PORT"},
		{name: "unknown backend", values: map[string]any{keyStorageBackend: "mongo"}, wantErr: "STORAGE_BACKEND"},
		{name: "redis without address", values: map[string]any{keyStorageBackend: "redis"}, wantErr: "STORAGE_ADDR"},
		{name: "sqlite without path", values: map[string]any{keyStorageBackend: "sqlite"}, wantErr: "SQLITE_PATH"},
		{name: "backend name is case insensitive", values: map[string]any{keyStorageBackend: "SQLite", keySQLitePath: ":memory:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSettings(testViper(t, tt.values))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("loadSettings() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("loadSettings() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSettings_FromEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "env-id")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.Set(keyPort, 8080)
	v.Set(keyStorageBackend, backendMemory)
	v.Set(keyBaseURL, "https://mcp.example.com")
	v.Set(keyGoogleClientSecret, "google-secret")
	v.Set(keyJWTSecret, strings.Repeat("j", 32))
	v.Set(keyAllowedEmail, "alice@example.com")

	s, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if s.GoogleClientID != "env-id" {
		t.Errorf("GoogleClientID = %q, want %q", s.GoogleClientID, "env-id")
	}
	if s.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v, want 2.5", s.RateLimitRPS)
	}
}

func TestSettings_GateConfig(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	s, err := loadSettings(testViper(t, map[string]any{
		keyEncryptionKey: key,
		keyRateLimitRPS:  3,
		keyTrustProxy:    true,
	}))
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	cfg, err := s.gateConfig(slog.Default(), nil)
	if err != nil {
		t.Fatalf("gateConfig() error = %v", err)
	}
	if len(cfg.Security.EncryptionKey) != 32 || !cfg.Security.TrustProxy || cfg.RateLimit.Rate != 3 {
		t.Errorf("gateConfig() = %+v", cfg)
	}
	if cfg.HTTPClient == nil || cfg.HTTPClient.Timeout != upstreamHTTPTimeout {
		t.Errorf("HTTPClient timeout not set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	s.EncryptionKey = "not base64!"
	if _, err := s.gateConfig(slog.Default(), nil); err == nil {
		t.Error("gateConfig(bad key) error = nil, want error")
	}
}

func TestOpenBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		values map[string]any
	}{
		{"memory", nil},
		{"sqlite", map[string]any{keyStorageBackend: backendSQLite, keySQLitePath: ":memory:"}},
		{"redis", map[string]any{keyStorageBackend: backendRedis, keyStorageAddr: mr.Addr()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := loadSettings(testViper(t, tt.values))
			if err != nil {
				t.Fatalf("loadSettings() error = %v", err)
			}
			store, closeFn, err := openBackend(ctx, s, slog.Default())
			if err != nil {
				t.Fatalf("openBackend() error = %v", err)
			}
			defer closeFn()

			if err := store.Set(ctx, "pendingAuth", "k", []byte(`{}`)); err != nil {
				t.Errorf("Set() error = %v", err)
			}
			if got, err := store.Get(ctx, "pendingAuth", "k"); err != nil || string(got) != `{}` {
				t.Errorf("Get() = %q, %v", got, err)
			}
		})
	}
}

func TestOpenBackend_Unreachable(t *testing.T) {
	s, err := loadSettings(testViper(t, map[string]any{keyStorageBackend: backendRedis, keyStorageAddr: "127.0.0.1:1"}))
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if _, _, err := openBackend(context.Background(), s, slog.Default()); err == nil {
		t.Error("openBackend() error = nil, want connection error")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format  string
		level   string
		wantErr bool
	}{
		{"text", "info", false},
		{"json", "debug", false},
		{"console", "warn", false},
		{"", "error", false},
		{"xml", "info", true},
		{"text", "loud", true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.format, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			logger.Error("hello")
			if !strings.Contains(buf.String(), "hello") {
				t.Errorf("log output = %q, want message", buf.String())
			}
		})
	}
}

func TestPKCECommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"pkce"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, _ := strings.Cut(line, "=")
		values[k] = v
	}
	if values["code_challenge_method"] != pkce.MethodS256 {
		t.Errorf("method = %q, want S256", values["code_challenge_method"])
	}
	if !pkce.VerifyChallenge(values["code_challenge"], values["code_verifier"]) {
		t.Errorf("challenge %q does not match verifier %q", values["code_challenge"], values["code_verifier"])
	}
}

func TestPKCECommand_Verify(t *testing.T) {
	verifier, challenge := pkce.NewVerifier()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"known verifier", []string{"pkce", "--verify", verifier}, "code_challenge=" + challenge, false},
		{"too short", []string{"pkce", "--verify", "short"}, "", true},
		{"bad charset", []string{"pkce", "--verify", strings.Repeat("a", 42) + "!"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestServeCommand_MissingConfig(t *testing.T) {
	for _, k := range []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "JWT_SECRET", "ALLOWED_EMAIL", "BASE_URL"} {
		t.Setenv(k, "")
	}
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "missing required configuration") {
		t.Errorf("Execute() error = %v, want missing configuration", err)
	}
}
