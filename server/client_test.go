package server

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRegisterClient(t *testing.T) {
	env := setupServer(t, nil, nil)
	ctx := context.Background()
	uris := []string{"https://client.example.com/callback", "cursor://anysphere.cursor-retrieval/oauth/callback"}

	reg, err := env.srv.RegisterClient(ctx, uris)
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if reg.ClientID == "" || reg.ClientSecret == "" {
		t.Fatalf("RegisterClient() = %+v, want id and secret", reg)
	}
	if len(reg.RedirectURIs) != 2 {
		t.Errorf("RedirectURIs = %v, want %v", reg.RedirectURIs, uris)
	}

	stored, err := env.srv.GetClient(ctx, reg.ClientID)
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if stored.ClientSecret == reg.ClientSecret {
		t.Error("stored secret is plaintext, want bcrypt hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.ClientSecret), []byte(reg.ClientSecret)); err != nil {
		t.Errorf("stored hash does not match secret: %v", err)
	}

	other, err := env.srv.RegisterClient(ctx, uris)
	if err != nil {
		t.Fatalf("second RegisterClient() error = %v", err)
	}
	if other.ClientID == reg.ClientID {
		t.Error("two registrations returned the same client_id")
	}
}

func TestRegisterClient_AcceptsAnyURIsByDefault(t *testing.T) {
	tests := []struct {
		name string
		uris []string
	}{
		{"no uris", nil},
		{"empty list", []string{}},
		{"relative uri", []string{"/callback"}},
		{"fragment", []string{"https://x.example.com/cb#frag"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServer(t, nil, nil)
			reg, err := env.srv.RegisterClient(context.Background(), tt.uris)
			if err != nil {
				t.Fatalf("RegisterClient() error = %v", err)
			}
			if reg.RedirectURIs == nil || len(reg.RedirectURIs) != len(tt.uris) {
				t.Errorf("RedirectURIs = %#v, want %d entries", reg.RedirectURIs, len(tt.uris))
			}
			if _, err := env.srv.GetClient(context.Background(), reg.ClientID); err != nil {
				t.Errorf("GetClient() error = %v", err)
			}
		})
	}
}

func TestRegisterClient_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		uris    []string
		message string
	}{
		{"no uris", nil, MsgRedirectURIsRequired},
		{"empty list", []string{}, MsgRedirectURIsRequired},
		{"javascript uri", []string{"javascript:alert(1)"}, MsgInvalidRedirectURI},
		{"one bad uri among good", []string{testRedirectURI, "https://x.example.com/cb#frag"}, MsgInvalidRedirectURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServer(t, nil, &Config{ValidateRedirectURIs: true})
			_, err := env.srv.RegisterClient(context.Background(), tt.uris)
			wantKind(t, err, KindValidation, tt.message)
		})
	}
}

func TestGetClient_Unknown(t *testing.T) {
	env := setupServer(t, nil, nil)
	_, err := env.srv.GetClient(context.Background(), "missing")
	wantKind(t, err, KindValidation, MsgUnknownClient)
}

func TestValidateClientCredentials(t *testing.T) {
	env := setupServer(t, nil, nil)
	ctx := context.Background()

	reg, err := env.srv.RegisterClient(ctx, []string{testRedirectURI})
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}

	if err := env.srv.ValidateClientCredentials(ctx, reg.ClientID, reg.ClientSecret); err != nil {
		t.Errorf("ValidateClientCredentials(correct) error = %v", err)
	}

	err = env.srv.ValidateClientCredentials(ctx, reg.ClientID, "wrong")
	wantKind(t, err, KindInvalidClient, MsgInvalidClientCreds)

	err = env.srv.ValidateClientCredentials(ctx, "unknown", reg.ClientSecret)
	wantKind(t, err, KindInvalidClient, MsgInvalidClientCreds)
}

func TestValidateClientCredentials_StorageFailure(t *testing.T) {
	env := setupServer(t, failingBackend("Get"), nil)
	err := env.srv.ValidateClientCredentials(context.Background(), "id", "secret")
	wantKind(t, err, KindStorage, MsgInternalError)
}
