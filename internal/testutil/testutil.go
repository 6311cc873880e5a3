package testutil

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-gate/pkce"
	"github.com/giantswarm/mcp-gate/storage"
	"github.com/giantswarm/mcp-gate/token"
)

// TestSecret is a JWT signing secret long enough for token.NewIssuer.
const TestSecret = "test-secret-0123456789-abcdefghijklmnop"

// FixedTime is the reference instant most tests start from.
var FixedTime = time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

// MockTime provides a controllable, concurrency-safe time source
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// GeneratePKCEPair returns a fresh (challenge, verifier) pair.
func GeneratePKCEPair() (challenge, verifier string) {
	verifier, challenge = pkce.NewVerifier()
	return challenge, verifier
}

// GenerateState returns a random client state value.
func GenerateState() string {
	return oauth2.GenerateVerifier()
}

// NewIssuer returns a token issuer on TestSecret driven by clock.
func NewIssuer(t *testing.T, clock func() time.Time) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer([]byte(TestSecret), token.WithClock(clock))
	if err != nil {
		t.Fatalf("token.NewIssuer() error = %v", err)
	}
	return issuer
}

// PendingAuthorization returns a pending record expiring 10 minutes after now.
func PendingAuthorization(now time.Time, challenge string) *storage.PendingAuthorization {
	return &storage.PendingAuthorization{
		ClientID:      "test-client-id",
		RedirectURI:   "https://client.example.com/callback",
		CodeChallenge: challenge,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
}

// AuthorizationCode returns a code record for userID expiring 10 minutes after now.
func AuthorizationCode(now time.Time, userID, challenge string) *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		ClientID:      "test-client-id",
		UserID:        userID,
		CodeChallenge: challenge,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
}
