package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestIssuer(t *testing.T, now time.Time, opts ...Option) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, append([]Option{WithClock(fixedClock(now))}, opts...)...)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

func TestNewIssuer_SecretLength(t *testing.T) {
	if _, err := NewIssuer(nil); err == nil {
		t.Error("NewIssuer(nil) expected error")
	}
	if _, err := NewIssuer([]byte("short")); err == nil {
		t.Error("NewIssuer(short) expected error")
	}
	if _, err := NewIssuer(testSecret); err != nil {
		t.Errorf("NewIssuer(32 bytes) error = %v", err)
	}
}

func TestIssuer_SecretIsCopied(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	issuer, _ := NewIssuer(secret)
	tok, _ := issuer.IssueAccessToken("alice@example.com")

	secret[0] = 'X'
	if _, err := issuer.Verify(tok); err != nil {
		t.Errorf("Verify() after caller mutated secret error = %v", err)
	}
}

func TestIssuer_AccessToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)

	tok, err := issuer.IssueAccessToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "alice@example.com" {
		t.Errorf("Subject = %q, want alice@example.com", claims.Subject)
	}
	if claims.Type != TypeAccess {
		t.Errorf("Type = %q, want %q", claims.Type, TypeAccess)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != AccessTokenTTL {
		t.Errorf("lifetime = %v, want %v", got, AccessTokenTTL)
	}
}

func TestIssuer_RefreshToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)

	tok, err := issuer.IssueRefreshToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Type != TypeRefresh {
		t.Errorf("Type = %q, want %q", claims.Type, TypeRefresh)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(RefreshTokenTTL)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, now.Add(RefreshTokenTTL))
	}
}

func TestIssuer_IssuePair(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())

	pair, err := issuer.IssuePair("alice@example.com")
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.ExpiresIn != AccessTokenTTL {
		t.Errorf("ExpiresIn = %v, want %v", pair.ExpiresIn, AccessTokenTTL)
	}
	if int(pair.ExpiresIn.Seconds()) != 604800 {
		t.Errorf("ExpiresIn seconds = %d, want 604800", int(pair.ExpiresIn.Seconds()))
	}

	access, err := issuer.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify(access) error = %v", err)
	}
	refresh, err := issuer.Verify(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Verify(refresh) error = %v", err)
	}
	if access.Type != TypeAccess || refresh.Type != TypeRefresh {
		t.Errorf("types = %q/%q, want access/refresh", access.Type, refresh.Type)
	}
	if access.ID == refresh.ID {
		t.Error("access and refresh tokens share a jti")
	}
}

func TestIssuer_EmptySubject(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())

	if _, err := issuer.IssueAccessToken(""); err == nil {
		t.Error("IssueAccessToken(\"\") expected error")
	}
}

func TestIssuer_VerifyDoesNotCheckType(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())
	refresh, _ := issuer.IssueRefreshToken("alice@example.com")

	claims, err := issuer.Verify(refresh)
	if err != nil {
		t.Fatalf("Verify(refresh token) error = %v", err)
	}
	if claims.Type != TypeRefresh {
		t.Errorf("Type = %q", claims.Type)
	}
}

func TestIssuer_Expiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, _ := newTestIssuer(t, issued).IssueAccessToken("alice@example.com")

	tests := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{name: "just before expiry", now: issued.Add(AccessTokenTTL - time.Second)},
		{name: "exactly at expiry", now: issued.Add(AccessTokenTTL), wantErr: true},
		{name: "after expiry", now: issued.Add(AccessTokenTTL + time.Hour), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestIssuer(t, tt.now).Verify(tok)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_VerifyRejects(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(t, now)
	valid, _ := issuer.IssueAccessToken("alice@example.com")

	otherIssuer, _ := NewIssuer([]byte("another-secret-another-secret-!!"))
	foreign, _ := otherIssuer.IssueAccessToken("alice@example.com")

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@example.com",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@example.com",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(testSecret)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type:             TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice@example.com"},
	}).SignedString(testSecret)

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type:             TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(testSecret)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: foreign},
		{name: "alg none", token: noneToken},
		{name: "alg HS512", token: hs512},
		{name: "missing exp", token: noExp},
		{name: "missing sub", token: noSub},
		{name: "tampered payload", token: tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_WithIssuer(t *testing.T) {
	now := time.Now()
	gate := newTestIssuer(t, now, WithIssuer("https://gate.example.com"))
	other := newTestIssuer(t, now, WithIssuer("https://other.example.com"))

	tok, _ := gate.IssueAccessToken("alice@example.com")

	claims, err := gate.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Issuer != "https://gate.example.com" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if _, err := other.Verify(tok); err == nil {
		t.Error("Verify() with different issuer expected error")
	}
}
