package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"

	oauth "github.com/giantswarm/mcp-gate"
	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/storage/valkey"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the OAuth gate HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, s, slog.Default())
		},
	}

	flags := cmd.Flags()
	flags.String(keyBaseURL, "", "public base URL of this server (required)")
	flags.String(keyGoogleClientID, "", "Google OAuth client ID (required)")
	flags.String(keyGoogleClientSecret, "", "Google OAuth client secret (required)")
	flags.String(keyJWTSecret, "", "secret for signing issued tokens, at least 32 bytes (required)")
	flags.String(keyAllowedEmail, "", "the only email address allowed to sign in (required)")
	flags.Int(keyPort, 8080, "listen port")
	flags.String(keyStorageBackend, backendMemory, "storage backend: memory, valkey, redis, sqlite")
	flags.String(keyStorageAddr, "", "valkey/redis address, e.g. localhost:6379")
	flags.String(keyStoragePassword, "", "valkey/redis password")
	flags.String(keyStoragePrefix, valkey.DefaultKeyPrefix, "key prefix for valkey/redis")
	flags.String(keySQLitePath, "", "sqlite database file")
	flags.String(keyEncryptionKey, "", "base64 32-byte key for encrypting upstream tokens at rest")
	flags.Float64(keyRateLimitRPS, 0, "requests per second per client IP on token and register (0 disables)")
	flags.Int(keyRateLimitBurst, 0, "rate limit burst per client IP")
	flags.Bool(keyTrustProxy, false, "trust X-Forwarded-For and X-Real-IP")
	flags.Bool(keyAuditLog, true, "log security audit events")
	flags.Bool(keyEnforceRegisteredClients, false, "require registered client_id and redirect_uri on authorize")
	flags.Bool(keyValidateRedirectURIs, false, "reject relative, fragment and script-scheme redirect URIs")
	flags.Bool(keyMetrics, false, "expose Prometheus metrics on /metrics")
	_ = v.BindPFlags(flags)

	return cmd
}

// serve runs the gate until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, s *settings, logger *slog.Logger) error {
	inst, metricsHandler, err := newInstrumentation(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := inst.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down instrumentation", "error", err)
		}
	}()

	backend, closeBackend, err := openBackend(ctx, s, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	cfg, err := s.gateConfig(logger, inst)
	if err != nil {
		return err
	}
	gate, err := oauth.New(cfg, backend)
	if err != nil {
		return fmt.Errorf("failed to create OAuth gate: %w", err)
	}
	defer gate.Close()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/", oauth.NewHandler(gate, logger).Routes())
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}

	addr := net.JoinHostPort("", strconv.Itoa(s.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logger.Info("OAuth gate listening",
		"addr", addr,
		"base_url", s.BaseURL,
		"storage", s.StorageBackend,
		"metrics", s.Metrics)
	return runHTTPServer(ctx, newHTTPServer(ctx, addr, router), ln, logger)
}

// newHTTPServer builds the server. Request contexts keep ctx values but not
// its cancellation, so a shutdown signal does not abort requests being drained.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

// runHTTPServer serves on ln until ctx is cancelled, then shuts down and waits
// up to shutdownTimeout for in-flight requests.
func runHTTPServer(ctx context.Context, httpServer *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newInstrumentation enables OpenTelemetry with a Prometheus reader when
// metrics are requested, and no-op providers otherwise.
func newInstrumentation(s *settings) (*instrumentation.Instrumentation, http.Handler, error) {
	if !s.Metrics {
		inst, err := instrumentation.New(instrumentation.Config{ServiceVersion: Version})
		return inst, nil, err
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	inst, err := instrumentation.New(instrumentation.Config{
		ServiceVersion: Version,
		Enabled:        true,
		MetricReader:   exporter,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	return inst, promhttp.Handler(), nil
}
