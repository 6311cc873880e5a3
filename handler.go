package oauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/mcp-gate/providers/google"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/server"
	"github.com/giantswarm/mcp-gate/token"
)

const (
	tokenTypeBearer = "Bearer"

	// maxBodySize bounds token and registration request bodies
	maxBodySize = 64 * 1024
)

// Endpoint paths
const (
	PathAuthorize = "/oauth/authorize"
	PathCallback  = google.CallbackPath
	PathToken     = "/oauth/token"
	PathRegister  = "/oauth/register"
	PathSession   = "/oauth/session"
	PathHealth    = "/health"
)

// Handler is a thin HTTP adapter for the OAuth Server.
// It parses requests, delegates to the flow controller and maps its errors.
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates a new HTTP handler
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
		tracer: tracenoop.NewTracerProvider().Tracer(""),
	}
	if server.Instrumentation != nil {
		h.tracer = server.Instrumentation.Tracer("http")
	}
	return h
}

// Routes returns the router serving every endpoint of the gate.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(security.RequestIDMiddleware)
	r.Use(h.withClientIP)
	r.Use(h.withSecurityHeaders)

	r.With(h.observe("health")).Get(PathHealth, h.ServeHealth)
	r.With(h.observe("authorization")).Get(PathAuthorize, h.ServeAuthorization)
	r.With(h.observe("callback")).Get(PathCallback, h.ServeCallback)
	r.With(h.observe("token"), h.rateLimit).Post(PathToken, h.ServeToken)
	r.With(h.observe("register"), h.rateLimit).Post(PathRegister, h.ServeClientRegistration)
	r.With(h.observe("session"), h.RequireAuth).Get(PathSession, h.ServeSession)
	return r
}

// ServeHealth reports liveness
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ServeAuthorization handles OAuth authorization requests
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	consentURL, err := h.server.Flow.StartAuthorization(r.Context(), server.AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// ServeCallback handles the Google callback and redirects back to the client
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURL, err := h.server.Flow.HandleCallback(r.Context(), server.CallbackRequest{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// ServeToken handles the authorization_code and refresh_token grants
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	req, err := parseTokenRequest(w, r)
	if err != nil {
		h.logger.Warn("Malformed token request", "error", err)
		h.writeError(w, NewOAuthError(ErrorCodeInvalidRequest, "Invalid request body", http.StatusBadRequest))
		return
	}

	ctx := r.Context()
	if req.ClientSecret != "" {
		if err := h.server.Flow.ValidateClientCredentials(ctx, req.ClientID, req.ClientSecret); err != nil {
			h.writeError(w, err)
			return
		}
	}

	var pair *token.Pair
	switch req.GrantType {
	case server.GrantTypeAuthorizationCode:
		pair, err = h.server.Flow.ExchangeAuthorizationCode(ctx, server.CodeExchangeRequest{
			Code:         req.Code,
			CodeVerifier: req.CodeVerifier,
			ClientID:     req.ClientID,
		})
	case server.GrantTypeRefreshToken:
		pair, err = h.server.Flow.RefreshAccessToken(ctx, req.RefreshToken)
	default:
		err = &server.Error{Kind: server.KindUnsupportedGrant, Message: server.MsgUnsupportedGrantType}
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
		RefreshToken: pair.RefreshToken,
	})
}

// parseTokenRequest reads a JSON or form body. Client credentials sent with
// HTTP Basic fill in what the body leaves empty.
func parseTokenRequest(w http.ResponseWriter, r *http.Request) (*TokenRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req TokenRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		req = TokenRequest{
			GrantType:    r.PostForm.Get("grant_type"),
			Code:         r.PostForm.Get("code"),
			CodeVerifier: r.PostForm.Get("code_verifier"),
			ClientID:     r.PostForm.Get("client_id"),
			ClientSecret: r.PostForm.Get("client_secret"),
			RefreshToken: r.PostForm.Get("refresh_token"),
		}
	}

	if id, secret, ok := r.BasicAuth(); ok {
		if req.ClientID == "" {
			req.ClientID = id
		}
		if req.ClientSecret == "" {
			req.ClientSecret = secret
		}
	}
	return &req, nil
}

// ServeClientRegistration handles unauthenticated dynamic client registration
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Malformed registration request", "error", err)
		h.writeError(w, NewOAuthError(ErrorCodeInvalidRequest, "Invalid request body", http.StatusBadRequest))
		return
	}

	result, err := h.server.Flow.RegisterClient(r.Context(), req.RedirectURIs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ClientRegistrationResponse{
		ClientID:     result.ClientID,
		ClientSecret: result.ClientSecret,
		RedirectURIs: result.RedirectURIs,
	})
}

// ServeSession returns the verified claims of the bearer token
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, NewOAuthError(ErrorCodeInvalidToken, msgInvalidToken, http.StatusUnauthorized))
		return
	}

	resp := SessionResponse{Subject: claims.Subject, Type: claims.Type}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}

// writeError maps err to its status and OAuth code. Flow errors were already
// logged by the flow controller.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	oe := ToOAuthError(err)
	var se *server.Error
	if !errors.As(err, &se) && oe.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err)
	}

	if oe.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", tokenTypeBearer)
	}
	h.writeJSON(w, oe.Status, ErrorResponse{
		Error:     oe.Description,
		ErrorCode: oe.Code,
	})
}
