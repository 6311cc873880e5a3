// Package storage defines the key-value contract used to persist OAuth flow state
// and the typed credential store built on top of it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Table names a logical table in the backing store.
type Table string

// The four logical tables. The names match the collection names of the
// deployed service so existing data stays addressable.
const (
	TablePendingAuth       Table = "pendingAuth"
	TableAuthCodes         Table = "authCodes"
	TableGoogleCredentials Table = "googleCredentials"
	TableRegisteredClients Table = "registeredClients"
)

// Tables lists every table known to the credential store.
var Tables = []Table{
	TablePendingAuth,
	TableAuthCodes,
	TableGoogleCredentials,
	TableRegisteredClients,
}

// ErrNotFound is returned by Store.Get when no record exists for the key,
// and by CredentialStore reads when a record exists but has expired.
var ErrNotFound = errors.New("record not found")

// Store is the minimal key-value contract every backend implements.
// Keys are matched exactly; there are no range queries.
// All methods accept context.Context for tracing and cancellation.
type Store interface {
	// Get returns the raw record stored under key, or ErrNotFound.
	Get(ctx context.Context, table Table, key string) ([]byte, error)

	// Set stores record under key, replacing any previous value.
	Set(ctx context.Context, table Table, key string, record []byte) error

	// Delete removes the record under key. Deleting an absent key is not an error.
	Delete(ctx context.Context, table Table, key string) error
}

// Error wraps a failure of the backing store. Callers treat it as fatal
// for the in-flight request.
type Error struct {
	Op    string
	Table Table
	Err   error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying backend error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a backing store failure.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// PendingAuthorization is created on /authorize and keyed by the client's state.
type PendingAuthorization struct {
	ClientID      string    `json:"clientId"`
	RedirectURI   string    `json:"redirectUri"`
	CodeChallenge string    `json:"codeChallenge"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AuthorizationCode is minted after upstream identity verification and
// redeemed exactly once at the token endpoint.
type AuthorizationCode struct {
	ClientID      string    `json:"clientId"`
	UserID        string    `json:"userId"`
	CodeChallenge string    `json:"codeChallenge"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// UpstreamCredentials holds the identity provider tokens for a verified user.
// ExpiresAt mirrors the upstream access token expiry and is never enforced by the store.
type UpstreamCredentials struct {
	RefreshToken string    `json:"refreshToken"`
	AccessToken  string    `json:"accessToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// RegisteredClient is created by dynamic client registration and never deleted.
// ClientSecret holds a bcrypt hash, never the plaintext secret.
type RegisteredClient struct {
	ClientSecret string   `json:"clientSecret"`
	RedirectURIs []string `json:"redirectUris"`
}

// expired reports whether a record with the given expiry is expired at now.
// A record expiring exactly at now is expired.
func expired(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt)
}
