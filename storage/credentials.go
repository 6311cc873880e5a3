package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/mcp-gate/internal/util"
	"github.com/giantswarm/mcp-gate/security"
)

// keyLogLength is the number of characters of a state or code included in logs
const keyLogLength = 8

// CredentialStore is a typed view over a Store. It owns the record encoding
// and enforces lazy expiry for the pendingAuth and authCodes tables: a read
// that finds an expired record deletes it and reports ErrNotFound. There is
// no background sweep.
type CredentialStore struct {
	backend   Store
	encryptor *security.Encryptor
	logger    *slog.Logger
}

// NewCredentialStore creates a typed credential store over backend.
func NewCredentialStore(backend Store, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{
		backend: backend,
		logger:  logger,
	}
}

// SetEncryptor enables encryption at rest of upstream tokens.
func (s *CredentialStore) SetEncryptor(enc *security.Encryptor) {
	s.encryptor = enc
	if enc != nil && enc.IsEnabled() {
		s.logger.Info("Upstream credential encryption at rest enabled")
	}
}

// SavePendingAuthorization stores a pending authorization under the client state.
func (s *CredentialStore) SavePendingAuthorization(ctx context.Context, state string, p *PendingAuthorization) error {
	if p == nil {
		return fmt.Errorf("pending authorization cannot be nil")
	}
	return s.put(ctx, TablePendingAuth, state, p)
}

// GetPendingAuthorization returns the pending authorization for state.
// Absent and expired records both yield ErrNotFound.
func (s *CredentialStore) GetPendingAuthorization(ctx context.Context, state string, now time.Time) (*PendingAuthorization, error) {
	var p PendingAuthorization
	if err := s.fetch(ctx, TablePendingAuth, state, &p); err != nil {
		return nil, err
	}
	if expired(now, p.ExpiresAt) {
		if err := s.expire(ctx, TablePendingAuth, state); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return &p, nil
}

// DeletePendingAuthorization removes the pending authorization for state.
func (s *CredentialStore) DeletePendingAuthorization(ctx context.Context, state string) error {
	return s.remove(ctx, TablePendingAuth, state)
}

// SaveAuthorizationCode stores an authorization code.
func (s *CredentialStore) SaveAuthorizationCode(ctx context.Context, code string, c *AuthorizationCode) error {
	if c == nil {
		return fmt.Errorf("authorization code cannot be nil")
	}
	return s.put(ctx, TableAuthCodes, code, c)
}

// GetAuthorizationCode returns the authorization code record.
// Absent and expired records both yield ErrNotFound.
func (s *CredentialStore) GetAuthorizationCode(ctx context.Context, code string, now time.Time) (*AuthorizationCode, error) {
	var c AuthorizationCode
	if err := s.fetch(ctx, TableAuthCodes, code, &c); err != nil {
		return nil, err
	}
	if expired(now, c.ExpiresAt) {
		if err := s.expire(ctx, TableAuthCodes, code); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return &c, nil
}

// DeleteAuthorizationCode removes an authorization code.
func (s *CredentialStore) DeleteAuthorizationCode(ctx context.Context, code string) error {
	return s.remove(ctx, TableAuthCodes, code)
}

// SaveUpstreamCredentials stores (or overwrites) the upstream tokens for a user.
func (s *CredentialStore) SaveUpstreamCredentials(ctx context.Context, userID string, creds *UpstreamCredentials) error {
	if creds == nil {
		return fmt.Errorf("upstream credentials cannot be nil")
	}

	stored := *creds
	if s.encryptor != nil && s.encryptor.IsEnabled() {
		var err error
		if stored.AccessToken, err = s.encryptor.Encrypt(creds.AccessToken); err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}
		if stored.RefreshToken, err = s.encryptor.Encrypt(creds.RefreshToken); err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}
	return s.put(ctx, TableGoogleCredentials, userID, &stored)
}

// GetUpstreamCredentials returns the upstream tokens for a user.
// The embedded expiry is informational and not enforced here.
func (s *CredentialStore) GetUpstreamCredentials(ctx context.Context, userID string) (*UpstreamCredentials, error) {
	var creds UpstreamCredentials
	if err := s.fetch(ctx, TableGoogleCredentials, userID, &creds); err != nil {
		return nil, err
	}

	if s.encryptor != nil && s.encryptor.IsEnabled() {
		var err error
		if creds.AccessToken, err = s.encryptor.Decrypt(creds.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		if creds.RefreshToken, err = s.encryptor.Decrypt(creds.RefreshToken); err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}
	return &creds, nil
}

// SaveClient stores a registered client.
func (s *CredentialStore) SaveClient(ctx context.Context, clientID string, c *RegisteredClient) error {
	if c == nil {
		return fmt.Errorf("client cannot be nil")
	}
	return s.put(ctx, TableRegisteredClients, clientID, c)
}

// GetClient returns a registered client.
func (s *CredentialStore) GetClient(ctx context.Context, clientID string) (*RegisteredClient, error) {
	var c RegisteredClient
	if err := s.fetch(ctx, TableRegisteredClients, clientID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CredentialStore) put(ctx context.Context, table Table, key string, v any) error {
	if key == "" {
		return fmt.Errorf("%s key cannot be empty", table)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", table, err)
	}
	if err := s.backend.Set(ctx, table, key, data); err != nil {
		return &Error{Op: "set", Table: table, Err: err}
	}
	return nil
}

func (s *CredentialStore) fetch(ctx context.Context, table Table, key string, v any) error {
	if key == "" {
		return ErrNotFound
	}
	data, err := s.backend.Get(ctx, table, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &Error{Op: "get", Table: table, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Op: "decode", Table: table, Err: err}
	}
	return nil
}

func (s *CredentialStore) remove(ctx context.Context, table Table, key string) error {
	if err := s.backend.Delete(ctx, table, key); err != nil {
		return &Error{Op: "delete", Table: table, Err: err}
	}
	return nil
}

// expire deletes a record found expired during a read.
func (s *CredentialStore) expire(ctx context.Context, table Table, key string) error {
	s.logger.Debug("Expired record removed on read",
		"table", string(table),
		"key_prefix", util.SafeTruncate(key, keyLogLength))
	return s.remove(ctx, table, key)
}
