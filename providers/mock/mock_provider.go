// Package mock provides mock implementations of the Provider interface for testing.
package mock

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-gate/providers"
)

// DefaultEmail is the identity returned by a fresh MockProvider.
const DefaultEmail = "mock@example.com"

// accessTokenPrefix ties a mock access token back to the upstream code it was
// exchanged for, so SetIdentities can resolve different users per code.
const accessTokenPrefix = "mock-access-token:"

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// AuthorizationURLFunc is called when AuthorizationURL() is invoked
	AuthorizationURLFunc func(state string) string

	// ExchangeCodeFunc is called when ExchangeCode() is invoked
	ExchangeCodeFunc func(ctx context.Context, code string) (*oauth2.Token, error)

	// IdentityFunc is called when Identity() is invoked
	IdentityFunc func(ctx context.Context, token *oauth2.Token) (*providers.Identity, error)

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// NewMockProvider creates a new mock provider with default implementations.
// Every exchange succeeds and resolves to DefaultEmail.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		AuthorizationURLFunc: func(state string) string {
			return "https://mock.example.com/authorize?state=" + url.QueryEscape(state)
		},
		ExchangeCodeFunc: func(ctx context.Context, code string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken:  accessTokenPrefix + code,
				TokenType:    "Bearer",
				RefreshToken: "mock-refresh-token",
				Expiry:       time.Now().Add(time.Hour),
			}, nil
		},
		IdentityFunc: func(ctx context.Context, token *oauth2.Token) (*providers.Identity, error) {
			return &providers.Identity{
				Subject:       "mock-user-123",
				Email:         DefaultEmail,
				EmailVerified: true,
				Name:          "Mock User",
			}, nil
		},
	}
}

// SetIdentities makes Identity resolve the email by the upstream code the
// token was exchanged for. Unknown codes fail.
func (m *MockProvider) SetIdentities(byCode map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IdentityFunc = func(ctx context.Context, token *oauth2.Token) (*providers.Identity, error) {
		code := strings.TrimPrefix(token.AccessToken, accessTokenPrefix)
		email, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("no identity for code %q", code)
		}
		return &providers.Identity{
			Subject:       "sub-" + email,
			Email:         email,
			EmailVerified: true,
		}, nil
	}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	// Release the lock before calling the user function; it may call other
	// mock methods.
	m.mu.Lock()
	m.CallCounts["Name"]++
	fn := m.NameFunc
	m.mu.Unlock()

	if fn == nil {
		return "mock"
	}
	return fn()
}

// AuthorizationURL returns the consent URL for state
func (m *MockProvider) AuthorizationURL(state string) string {
	m.mu.Lock()
	m.CallCounts["AuthorizationURL"]++
	fn := m.AuthorizationURLFunc
	m.mu.Unlock()
	if fn == nil {
		return "https://mock.example.com/authorize?state=" + url.QueryEscape(state)
	}
	return fn(state)
}

// ExchangeCode exchanges an authorization code for tokens
func (m *MockProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	m.mu.Lock()
	m.CallCounts["ExchangeCode"]++
	fn := m.ExchangeCodeFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("ExchangeCodeFunc not configured")
	}
	return fn(ctx, code)
}

// Identity resolves the verified identity for token
func (m *MockProvider) Identity(ctx context.Context, token *oauth2.Token) (*providers.Identity, error) {
	m.mu.Lock()
	m.CallCounts["Identity"]++
	fn := m.IdentityFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("IdentityFunc not configured")
	}
	return fn(ctx, token)
}

// ResetCallCounts resets all call counters
func (m *MockProvider) ResetCallCounts() {
	m.mu.Lock()
	m.CallCounts = make(map[string]int)
	m.mu.Unlock()
}

// GetCallCount returns the number of times a method was called
func (m *MockProvider) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}
