package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/storage"
)

// RegisteredClientResult is returned once from registration. ClientSecret is
// the plaintext secret; only its bcrypt hash is stored.
type RegisteredClientResult struct {
	ClientID     string
	ClientSecret string
	RedirectURIs []string
}

// RegisterClient registers a client with the given redirect URIs. Registration
// is unauthenticated and, unless ValidateRedirectURIs is set, accepts any
// list of URIs including an empty one.
func (s *Server) RegisterClient(ctx context.Context, redirectURIs []string) (*RegisteredClientResult, error) {
	const op = "register_client"
	ctx, span := s.tracer.Start(ctx, "oauth."+op)
	defer span.End()

	if s.Config.ValidateRedirectURIs {
		if len(redirectURIs) == 0 {
			return nil, s.fail(ctx, span, op, newError(KindValidation, MsgRedirectURIsRequired, nil))
		}
		for _, uri := range redirectURIs {
			if err := validateRedirectURI(uri); err != nil {
				return nil, s.fail(ctx, span, op, newError(KindValidation, MsgInvalidRedirectURI, err))
			}
		}
	}

	clientID := uuid.NewString()
	clientSecret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, s.fail(ctx, span, op, newError(KindInternal, MsgInternalError, fmt.Errorf("failed to hash client secret: %w", err)))
	}

	uris := append([]string{}, redirectURIs...)
	if err := s.store.SaveClient(ctx, clientID, &storage.RegisteredClient{
		ClientSecret: string(hash),
		RedirectURIs: uris,
	}); err != nil {
		return nil, s.fail(ctx, span, op, storageError(err))
	}

	instrumentation.AddOAuthFlowAttributes(span, clientID, "")
	s.metrics().RecordClientRegistration(ctx)
	s.Auditor.LogClientRegistered(ctx, clientID, "", len(uris))
	s.Logger.InfoContext(ctx, "Client registered",
		"client_id", clientID,
		"redirect_uris", len(uris))

	instrumentation.SetSpanSuccess(span)
	return &RegisteredClientResult{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURIs: uris,
	}, nil
}

// GetClient returns a registered client. Unknown clients yield a
// validation error carrying MsgUnknownClient.
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.RegisteredClient, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindValidation, MsgUnknownClient, nil)
	}
	if err != nil {
		return nil, storageError(err)
	}
	return client, nil
}

// ValidateClientCredentials checks a presented client secret against the
// stored bcrypt hash. Unknown clients and wrong secrets fail alike.
func (s *Server) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) error {
	const op = "validate_client"
	ctx, span := s.tracer.Start(ctx, "oauth."+op)
	defer span.End()

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return s.fail(ctx, span, op, storageError(err))
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(client.ClientSecret), []byte(clientSecret)) != nil {
		s.Auditor.LogAuthFailure(ctx, security.EventInvalidClientCredentials, clientID, "", "secret_mismatch")
		return s.fail(ctx, span, op, newError(KindInvalidClient, MsgInvalidClientCreds, nil))
	}

	instrumentation.SetSpanSuccess(span)
	return nil
}
