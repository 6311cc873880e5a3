package storage_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/mcp-gate/security"
	"github.com/giantswarm/mcp-gate/storage"
	"github.com/giantswarm/mcp-gate/storage/memory"
	"github.com/giantswarm/mcp-gate/storage/mock"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCredentialStore(t *testing.T) (*storage.CredentialStore, *memory.Store) {
	t.Helper()
	backend := memory.New()
	return storage.NewCredentialStore(backend, nil), backend
}

func TestCredentialStore_PendingAuthorizationRoundTrip(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	want := &storage.PendingAuthorization{
		ClientID:      "client-1",
		RedirectURI:   "https://app.example.com/callback",
		CodeChallenge: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ExpiresAt:     testNow.Add(10 * time.Minute),
	}
	if err := creds.SavePendingAuthorization(ctx, "state-1", want); err != nil {
		t.Fatalf("SavePendingAuthorization() error = %v", err)
	}

	got, err := creds.GetPendingAuthorization(ctx, "state-1", testNow)
	if err != nil {
		t.Fatalf("GetPendingAuthorization() error = %v", err)
	}
	if got.ClientID != want.ClientID || got.RedirectURI != want.RedirectURI || got.CodeChallenge != want.CodeChallenge {
		t.Errorf("GetPendingAuthorization() = %+v, want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want.ExpiresAt)
	}
}

func TestCredentialStore_LazyExpiry(t *testing.T) {
	tests := []struct {
		name        string
		now         time.Time
		wantPresent bool
	}{
		{name: "before expiry", now: testNow.Add(9 * time.Minute), wantPresent: true},
		{name: "exactly at expiry", now: testNow.Add(10 * time.Minute), wantPresent: false},
		{name: "after expiry", now: testNow.Add(11 * time.Minute), wantPresent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, backend := newTestCredentialStore(t)
			ctx := context.Background()

			if err := creds.SavePendingAuthorization(ctx, "state", &storage.PendingAuthorization{
				ClientID:  "client-1",
				ExpiresAt: testNow.Add(10 * time.Minute),
			}); err != nil {
				t.Fatalf("SavePendingAuthorization() error = %v", err)
			}
			if err := creds.SaveAuthorizationCode(ctx, "code", &storage.AuthorizationCode{
				ClientID:  "client-1",
				UserID:    "alice@example.com",
				ExpiresAt: testNow.Add(10 * time.Minute),
			}); err != nil {
				t.Fatalf("SaveAuthorizationCode() error = %v", err)
			}

			_, errPending := creds.GetPendingAuthorization(ctx, "state", tt.now)
			_, errCode := creds.GetAuthorizationCode(ctx, "code", tt.now)

			if tt.wantPresent {
				if errPending != nil || errCode != nil {
					t.Fatalf("unexpected errors: pending=%v code=%v", errPending, errCode)
				}
				return
			}

			if !errors.Is(errPending, storage.ErrNotFound) {
				t.Errorf("GetPendingAuthorization() error = %v, want ErrNotFound", errPending)
			}
			if !errors.Is(errCode, storage.ErrNotFound) {
				t.Errorf("GetAuthorizationCode() error = %v, want ErrNotFound", errCode)
			}
			if n := backend.Len(storage.TablePendingAuth); n != 0 {
				t.Errorf("expired pending authorization not deleted, %d records left", n)
			}
			if n := backend.Len(storage.TableAuthCodes); n != 0 {
				t.Errorf("expired authorization code not deleted, %d records left", n)
			}

			// a second read with an earlier clock still finds nothing
			if _, err := creds.GetPendingAuthorization(ctx, "state", testNow); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("second GetPendingAuthorization() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCredentialStore_NonExpiringTables(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	err := creds.SaveUpstreamCredentials(ctx, "alice@example.com", &storage.UpstreamCredentials{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		ExpiresAt:    testNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("SaveUpstreamCredentials() error = %v", err)
	}

	got, err := creds.GetUpstreamCredentials(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUpstreamCredentials() error = %v, want record despite past expiry", err)
	}
	if got.AccessToken != "ya29.access" || got.RefreshToken != "1//refresh" {
		t.Errorf("GetUpstreamCredentials() = %+v", got)
	}

	if err := creds.SaveClient(ctx, "client-1", &storage.RegisteredClient{
		ClientSecret: "$2a$10$hash",
		RedirectURIs: []string{"https://a.example.com/cb", "https://b.example.com/cb"},
	}); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}
	client, err := creds.GetClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if len(client.RedirectURIs) != 2 || client.RedirectURIs[1] != "https://b.example.com/cb" {
		t.Errorf("RedirectURIs = %v, want ordered list preserved", client.RedirectURIs)
	}
}

func TestCredentialStore_UpstreamEncryption(t *testing.T) {
	backend := memory.New()
	creds := storage.NewCredentialStore(backend, nil)

	key, _ := security.GenerateKey()
	enc, _ := security.NewEncryptor(key)
	creds.SetEncryptor(enc)

	ctx := context.Background()
	if err := creds.SaveUpstreamCredentials(ctx, "alice@example.com", &storage.UpstreamCredentials{
		AccessToken:  "ya29.plain-access",
		RefreshToken: "1//plain-refresh",
	}); err != nil {
		t.Fatalf("SaveUpstreamCredentials() error = %v", err)
	}

	raw, err := backend.Get(ctx, storage.TableGoogleCredentials, "alice@example.com")
	if err != nil {
		t.Fatalf("backend Get() error = %v", err)
	}
	if strings.Contains(string(raw), "plain-access") || strings.Contains(string(raw), "plain-refresh") {
		t.Errorf("upstream tokens stored in plaintext: %s", raw)
	}

	got, err := creds.GetUpstreamCredentials(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUpstreamCredentials() error = %v", err)
	}
	if got.AccessToken != "ya29.plain-access" || got.RefreshToken != "1//plain-refresh" {
		t.Errorf("decrypted credentials = %+v", got)
	}
}

func TestCredentialStore_Delete(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	if err := creds.SaveAuthorizationCode(ctx, "code", &storage.AuthorizationCode{ExpiresAt: testNow.Add(time.Minute)}); err != nil {
		t.Fatalf("SaveAuthorizationCode() error = %v", err)
	}
	if err := creds.DeleteAuthorizationCode(ctx, "code"); err != nil {
		t.Fatalf("DeleteAuthorizationCode() error = %v", err)
	}
	if _, err := creds.GetAuthorizationCode(ctx, "code", testNow); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetAuthorizationCode() after delete error = %v, want ErrNotFound", err)
	}

	if err := creds.SavePendingAuthorization(ctx, "state", &storage.PendingAuthorization{ExpiresAt: testNow.Add(time.Minute)}); err != nil {
		t.Fatalf("SavePendingAuthorization() error = %v", err)
	}
	if err := creds.DeletePendingAuthorization(ctx, "state"); err != nil {
		t.Fatalf("DeletePendingAuthorization() error = %v", err)
	}
	if _, err := creds.GetPendingAuthorization(ctx, "state", testNow); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPendingAuthorization() after delete error = %v, want ErrNotFound", err)
	}
}

func TestCredentialStore_BackendFailures(t *testing.T) {
	backendErr := errors.New("connection refused")
	backend := mock.NewStore()
	backend.GetFunc = func(context.Context, storage.Table, string) ([]byte, error) {
		return nil, backendErr
	}
	backend.SetFunc = func(context.Context, storage.Table, string, []byte) error {
		return backendErr
	}
	creds := storage.NewCredentialStore(backend, nil)
	ctx := context.Background()

	_, err := creds.GetPendingAuthorization(ctx, "state", testNow)
	if !storage.IsStorageError(err) {
		t.Errorf("GetPendingAuthorization() error = %v, want storage error", err)
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("storage error does not wrap backend error: %v", err)
	}

	err = creds.SaveClient(ctx, "client", &storage.RegisteredClient{})
	if !storage.IsStorageError(err) {
		t.Errorf("SaveClient() error = %v, want storage error", err)
	}
}

func TestCredentialStore_CorruptRecord(t *testing.T) {
	creds, backend := newTestCredentialStore(t)
	ctx := context.Background()

	_ = backend.Set(ctx, storage.TableAuthCodes, "code", []byte("not json"))

	_, err := creds.GetAuthorizationCode(ctx, "code", testNow)
	if !storage.IsStorageError(err) {
		t.Errorf("GetAuthorizationCode() error = %v, want storage error", err)
	}
}

func TestCredentialStore_EmptyKey(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	if _, err := creds.GetPendingAuthorization(ctx, "", testNow); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPendingAuthorization(\"\") error = %v, want ErrNotFound", err)
	}
	if err := creds.SavePendingAuthorization(ctx, "", &storage.PendingAuthorization{}); err == nil {
		t.Error("SavePendingAuthorization(\"\") expected error, got nil")
	}
}
