package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/internal/util"
	"github.com/giantswarm/mcp-gate/pkce"
	"github.com/giantswarm/mcp-gate/providers"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/storage"
	"github.com/giantswarm/mcp-gate/token"
)

// Grant types accepted by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// AuthorizationRequest holds the /authorize query parameters.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CallbackRequest holds the provider callback query parameters.
type CallbackRequest struct {
	Code  string
	State string
	// Error is the provider's error parameter, set when the user declined
	Error string
}

// CodeExchangeRequest holds the authorization_code grant parameters.
type CodeExchangeRequest struct {
	Code         string
	CodeVerifier string
	ClientID     string
}

// StartAuthorization validates an authorization request, stores it under the
// client's state and returns the provider consent URL carrying that state.
func (s *Server) StartAuthorization(ctx context.Context, req AuthorizationRequest) (string, error) {
	const op = "start_authorization"
	ctx, span := s.tracer.Start(ctx, "oauth."+op)
	defer span.End()

	if req.ClientID == "" || req.RedirectURI == "" || req.State == "" || req.CodeChallenge == "" {
		return "", s.fail(ctx, span, op, newError(KindValidation, MsgMissingParameters, nil))
	}
	if err := pkce.ValidateMethod(req.CodeChallengeMethod); err != nil {
		return "", s.fail(ctx, span, op, newError(KindValidation, MsgOnlyS256, err))
	}
	if s.Config.ValidateRedirectURIs {
		if err := validateRedirectURI(req.RedirectURI); err != nil {
			return "", s.fail(ctx, span, op, newError(KindValidation, MsgInvalidRedirectURI, err))
		}
	}

	instrumentation.AddOAuthFlowAttributes(span, req.ClientID, "")
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrPKCEMethod, req.CodeChallengeMethod))

	if s.Config.EnforceRegisteredClients {
		if err := s.checkRegisteredRedirect(ctx, req.ClientID, req.RedirectURI); err != nil {
			return "", s.fail(ctx, span, op, err)
		}
	}

	now := s.now()
	pending := &storage.PendingAuthorization{
		ClientID:      req.ClientID,
		RedirectURI:   req.RedirectURI,
		CodeChallenge: req.CodeChallenge,
		ExpiresAt:     now.Add(s.Config.PendingAuthorizationTTL),
	}
	if err := s.store.SavePendingAuthorization(ctx, req.State, pending); err != nil {
		return "", s.fail(ctx, span, op, storageError(err))
	}

	s.metrics().RecordAuthorizationStarted(ctx, req.ClientID)
	s.Auditor.LogAuthorizationStarted(ctx, req.ClientID, "")
	s.Logger.DebugContext(ctx, "Authorization started",
		"client_id", req.ClientID,
		"state_prefix", util.SafeTruncate(req.State, 8))

	instrumentation.SetSpanSuccess(span)
	return s.provider.AuthorizationURL(req.State), nil
}

// checkRegisteredRedirect requires clientID to be registered with redirectURI.
func (s *Server) checkRegisteredRedirect(ctx context.Context, clientID, redirectURI string) *Error {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return e
		}
		return storageError(err)
	}
	for _, registered := range client.RedirectURIs {
		if registered == redirectURI {
			return nil
		}
	}
	return newError(KindValidation, MsgInvalidRedirectURI, nil)
}

// HandleCallback completes the provider leg: it verifies the identity,
// applies the allow policy and, for allowed users, binds a fresh code to the
// pending authorization. It returns the client redirect URL with code and
// state appended.
func (s *Server) HandleCallback(ctx context.Context, req CallbackRequest) (string, error) {
	const op = "handle_callback"
	ctx, span := s.tracer.Start(ctx, "oauth."+op)
	defer span.End()

	if req.Error != "" {
		s.Auditor.LogAuthFailure(ctx, security.EventUpstreamError, "", "", req.Error)
		return "", s.fail(ctx, span, op, newError(KindValidation, fmt.Sprintf("Google OAuth error: %s", req.Error), nil))
	}
	if req.Code == "" || req.State == "" {
		return "", s.fail(ctx, span, op, newError(KindValidation, MsgMissingCodeOrState, nil))
	}

	now := s.now()
	pending, err := s.store.GetPendingAuthorization(ctx, req.State, now)
	if errors.Is(err, storage.ErrNotFound) {
		s.Auditor.LogAuthFailure(ctx, security.EventInvalidState, "", "", "state_not_found")
		return "", s.fail(ctx, span, op, newError(KindState, MsgInvalidState, nil))
	}
	if err != nil {
		return "", s.fail(ctx, span, op, storageError(err))
	}
	instrumentation.AddOAuthFlowAttributes(span, pending.ClientID, "")

	upstream, identity, err := s.resolveIdentity(ctx, req.Code)
	if err != nil {
		s.metrics().RecordCallbackProcessed(ctx, pending.ClientID, false)
		s.Auditor.LogAuthFailure(ctx, security.EventUpstreamError, pending.ClientID, "", "exchange_or_identity_failed")
		return "", s.fail(ctx, span, op, upstreamError(err))
	}
	userHash := security.HashForLogging(identity.Email)
	instrumentation.AddOAuthFlowAttributes(span, "", userHash)

	if !s.allow(identity.Email) {
		// No code is minted; the pending record stays until it expires.
		s.metrics().RecordCallbackProcessed(ctx, pending.ClientID, false)
		s.metrics().RecordAccessDenied(ctx)
		s.Auditor.LogAccessDenied(ctx, identity.Email, pending.ClientID)
		instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrAllowResult, false))
		return "", s.fail(ctx, span, op, newError(KindAccessDenied, MsgUserNotAuthorized, nil))
	}
	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrAllowResult, true))

	redirect, err := buildClientRedirect(pending.RedirectURI, req.State)
	if err != nil {
		return "", s.fail(ctx, span, op, newError(KindValidation, MsgInvalidRedirectURI, err))
	}

	if err := s.saveUpstreamCredentials(ctx, identity.Email, upstream, now); err != nil {
		return "", s.fail(ctx, span, op, storageError(err))
	}

	code := generateCode()
	record := &storage.AuthorizationCode{
		ClientID:      pending.ClientID,
		UserID:        identity.Email,
		CodeChallenge: pending.CodeChallenge,
		ExpiresAt:     now.Add(s.Config.AuthorizationCodeTTL),
	}
	if err := s.store.SaveAuthorizationCode(ctx, code, record); err != nil {
		return "", s.fail(ctx, span, op, storageError(err))
	}
	if err := s.store.DeletePendingAuthorization(ctx, req.State); err != nil {
		return "", s.fail(ctx, span, op, storageError(err))
	}

	q := redirect.Query()
	q.Set("code", code)
	redirect.RawQuery = q.Encode()

	s.metrics().RecordCallbackProcessed(ctx, pending.ClientID, true)
	s.Auditor.LogCodeIssued(ctx, identity.Email, pending.ClientID)
	s.Logger.InfoContext(ctx, "Authorization code issued",
		"client_id", pending.ClientID,
		"user", util.MaskEmail(identity.Email))

	instrumentation.SetSpanSuccess(span)
	return redirect.String(), nil
}

// resolveIdentity exchanges the provider code and verifies the identity.
func (s *Server) resolveIdentity(ctx context.Context, code string) (*oauth2.Token, *providers.Identity, error) {
	upstream, err := callProvider(ctx, s, "exchange_code", func(ctx context.Context) (*oauth2.Token, error) {
		return s.provider.ExchangeCode(ctx, code)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	identity, err := callProvider(ctx, s, "identity", func(ctx context.Context) (*providers.Identity, error) {
		return s.provider.Identity(ctx, upstream)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if identity.Email == "" {
		return nil, nil, fmt.Errorf("provider returned an identity without email")
	}
	return upstream, identity, nil
}

// callProvider wraps one provider call in a span and records its latency.
func callProvider[T any](ctx context.Context, s *Server, operation string, fn func(context.Context) (T, error)) (T, error) {
	name := s.provider.Name()
	ctx, span := s.tracer.Start(ctx, "provider."+operation)
	defer span.End()
	instrumentation.AddProviderAttributes(span, name, operation)

	start := time.Now()
	result, err := fn(ctx)
	s.metrics().RecordProviderAPICall(ctx, name, operation, instrumentation.SinceMs(start), err)

	if err != nil {
		instrumentation.RecordError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	return result, err
}

// saveUpstreamCredentials stores the provider tokens for userID. Google only
// returns a refresh token on consent, so an absent one keeps the stored value.
func (s *Server) saveUpstreamCredentials(ctx context.Context, userID string, upstream *oauth2.Token, now time.Time) error {
	creds := &storage.UpstreamCredentials{
		AccessToken:  upstream.AccessToken,
		RefreshToken: upstream.RefreshToken,
		ExpiresAt:    upstream.Expiry,
	}
	if creds.ExpiresAt.IsZero() {
		creds.ExpiresAt = now.Add(s.Config.UpstreamTokenFallbackTTL)
	}

	if creds.RefreshToken == "" {
		previous, err := s.store.GetUpstreamCredentials(ctx, userID)
		switch {
		case err == nil:
			creds.RefreshToken = previous.RefreshToken
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("failed to load previous upstream credentials: %w", err)
		}
	}

	if err := s.store.SaveUpstreamCredentials(ctx, userID, creds); err != nil {
		return fmt.Errorf("failed to save upstream credentials: %w", err)
	}
	return nil
}

// buildClientRedirect parses the stored redirect URI and sets state on it,
// keeping any query parameters the client registered.
func buildClientRedirect(redirectURI, state string) (*url.URL, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect_uri: %w", err)
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u, nil
}

// ExchangeAuthorizationCode redeems a code for a token pair. The code is
// consumed only on success; a wrong verifier leaves it redeemable.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, req CodeExchangeRequest) (*token.Pair, error) {
	const op = "exchange_code"
	ctx, span := s.tracer.Start(ctx, "oauth."+op)
	defer span.End()
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrGrantType, GrantTypeAuthorizationCode))

	if req.Code == "" || req.CodeVerifier == "" || req.ClientID == "" {
		return nil, s.fail(ctx, span, op, newError(KindValidation, MsgMissingParameters, nil))
	}
	instrumentation.AddOAuthFlowAttributes(span, req.ClientID, "")

	record, err := s.store.GetAuthorizationCode(ctx, req.Code, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics().RecordCodeExchange(ctx, req.ClientID, false)
		s.Auditor.LogAuthFailure(ctx, security.EventInvalidCode, req.ClientID, "", "code_not_found")
		return nil, s.fail(ctx, span, op, newError(KindState, MsgInvalidCode, nil))
	}
	if err != nil {
		return nil, s.fail(ctx, span, op, storageError(err))
	}

	// A code presented by another client is indistinguishable from an unknown one.
	if record.ClientID != req.ClientID {
		s.metrics().RecordCodeExchange(ctx, req.ClientID, false)
		s.Auditor.LogAuthFailure(ctx, security.EventInvalidCode, req.ClientID, "", "client_mismatch")
		return nil, s.fail(ctx, span, op, newError(KindState, MsgInvalidCode, nil))
	}

	if !pkce.VerifyChallenge(record.CodeChallenge, req.CodeVerifier) {
		s.metrics().RecordCodeExchange(ctx, req.ClientID, false)
		s.metrics().RecordPKCEValidationFailed(ctx, pkce.MethodS256)
		s.Auditor.LogPKCEFailure(ctx, record.UserID, req.ClientID)
		return nil, s.fail(ctx, span, op, newError(KindInvalidGrant, MsgInvalidCodeVerifier, nil))
	}

	pair, err := s.issuer.IssuePair(record.UserID)
	if err != nil {
		return nil, s.fail(ctx, span, op, newError(KindInternal, MsgInternalError, err))
	}
	if err := s.store.DeleteAuthorizationCode(ctx, req.Code); err != nil {
		return nil, s.fail(ctx, span, op, storageError(err))
	}

	s.metrics().RecordCodeExchange(ctx, req.ClientID, true)
	s.Auditor.LogTokenIssued(ctx, record.UserID, req.ClientID, GrantTypeAuthorizationCode)
	s.Logger.InfoContext(ctx, "Tokens issued",
		"client_id", req.ClientID,
		"user", util.MaskEmail(record.UserID),
		"grant_type", GrantTypeAuthorizationCode)

	instrumentation.SetSpanSuccess(span)
	return pair, nil
}

// RefreshAccessToken issues a fresh pair for the subject of a refresh token.
// The presented refresh token is not revoked and stays valid until it expires.
func (s *Server) RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Pair, error) {
	const op = "refresh_token"
	ctx, span := s.tracer.Start(ctx, "oauth."+op)
	defer span.End()
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrGrantType, GrantTypeRefreshToken))

	if refreshToken == "" {
		return nil, s.fail(ctx, span, op, newError(KindValidation, MsgMissingRefreshToken, nil))
	}

	claims, err := s.issuer.Verify(refreshToken)
	if err != nil {
		s.metrics().RecordTokenRefresh(ctx, false)
		s.Auditor.LogAuthFailure(ctx, security.EventInvalidRefreshToken, "", "", "verification_failed")
		return nil, s.fail(ctx, span, op, newError(KindInvalidGrant, MsgInvalidRefreshToken, err))
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrTokenType, claims.Type))

	if claims.Type != token.TypeRefresh {
		s.metrics().RecordTokenRefresh(ctx, false)
		s.Auditor.LogAuthFailure(ctx, security.EventInvalidRefreshToken, "", "", "wrong_token_type")
		return nil, s.fail(ctx, span, op, newError(KindInvalidGrant, MsgInvalidTokenType, nil))
	}

	pair, err := s.issuer.IssuePair(claims.Subject)
	if err != nil {
		return nil, s.fail(ctx, span, op, newError(KindInternal, MsgInternalError, err))
	}

	s.metrics().RecordTokenRefresh(ctx, true)
	s.Auditor.LogTokenRefreshed(ctx, claims.Subject)
	s.Logger.DebugContext(ctx, "Tokens refreshed", "user", util.MaskEmail(claims.Subject))

	instrumentation.SetSpanSuccess(span)
	return pair, nil
}
