package oauth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/token"
)

// Bearer failure messages
const (
	msgMissingAuthHeader = "Missing authorization header"
	msgInvalidAuthFormat = "Invalid authorization format"
	msgInvalidToken      = "Invalid token"
)

// Context key for verified claims
type contextKey string

const claimsKey contextKey = "token_claims"

// ClaimsFromContext returns the claims attached by RequireAuth
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*token.Claims)
	return claims, ok && claims != nil
}

// ContextWithClaims attaches verified claims to ctx.
//
// WARNING: outside tests only RequireAuth should call this, after verifying
// the token.
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// RequireAuth is middleware that admits requests carrying a valid bearer
// token issued by this server and attaches its claims to the context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.rejectBearer(w, r, msgMissingAuthHeader, "missing_header")
			return
		}

		// only the second space-separated field is the token
		fields := strings.Split(authHeader, " ")
		var value string
		if len(fields) > 1 {
			value = fields[1]
		}
		if fields[0] != tokenTypeBearer || value == "" {
			h.rejectBearer(w, r, msgInvalidAuthFormat, "invalid_format")
			return
		}

		claims, err := h.server.Issuer.Verify(value)
		if err != nil {
			h.logger.DebugContext(ctx, "Bearer token rejected", "error", err)
			h.rejectBearer(w, r, msgInvalidToken, "verification_failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
	})
}

func (h *Handler) rejectBearer(w http.ResponseWriter, r *http.Request, message, reason string) {
	h.server.Auditor.LogAuthFailure(r.Context(), security.EventInvalidBearerToken, "", "", reason)
	h.writeError(w, NewOAuthError(ErrorCodeInvalidToken, message, http.StatusUnauthorized))
}

// withClientIP stores the resolved client IP in the request context for
// rate limiting and audit events.
func (h *Handler) withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r, h.server.Config.Security.TrustProxy)
		next.ServeHTTP(w, r.WithContext(security.WithClientIP(r.Context(), ip)))
	})
}

func (h *Handler) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		security.SetSecurityHeaders(w, h.server.Config.BaseURL)
		next.ServeHTTP(w, r)
	})
}

// rateLimit rejects requests from client IPs over their budget. It is a
// pass-through when rate limiting is disabled.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := h.server.RateLimiter
		ctx := r.Context()
		ip := security.ClientIPFromContext(ctx)
		if limiter == nil || limiter.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		h.logger.WarnContext(ctx, "Rate limit exceeded", "ip", ip, "endpoint", r.URL.Path)
		h.server.Instrumentation.Metrics().RecordRateLimitExceeded(ctx, "ip")
		h.server.Auditor.LogRateLimitExceeded(ctx, ip, r.URL.Path)
		w.Header().Set("Retry-After", "1")
		h.writeError(w, NewOAuthError(ErrorCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests))
	})
}

// observe wraps an endpoint in a span and records its status and latency.
func (h *Handler) observe(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := h.tracer.Start(r.Context(), "oauth.http."+endpoint)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			instrumentation.AddHTTPAttributes(span, r.Method, endpoint, status)
			if status >= http.StatusInternalServerError {
				instrumentation.SetSpanError(span, http.StatusText(status))
			} else {
				instrumentation.SetSpanSuccess(span)
			}
			h.server.Instrumentation.Metrics().RecordHTTPRequest(ctx, r.Method, endpoint, status,
				instrumentation.SinceMs(start))
		})
	}
}
