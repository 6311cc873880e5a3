package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Token lifetimes.
const (
	AccessTokenTTL  = 7 * 24 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// MinSecretLength is the shortest signing secret accepted by NewIssuer.
const MinSecretLength = 32

// ErrInvalidToken is wrapped by every Verify failure: bad signature,
// malformed token, wrong algorithm or expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the claims of an issued token.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Pair is an access token and a refresh token minted together.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime
	ExpiresIn time.Duration
}

// Issuer mints and verifies tokens with an injected signing secret.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithIssuer sets the "iss" claim on issued tokens and requires it on verify.
func WithIssuer(iss string) Option {
	return func(i *Issuer) {
		i.issuer = iss
	}
}

// NewIssuer creates an Issuer. The secret is copied; it must be at least
// MinSecretLength bytes.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}

	i := &Issuer{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccessToken mints an access token for subject, valid for AccessTokenTTL.
func (i *Issuer) IssueAccessToken(subject string) (string, error) {
	return i.issue(subject, TypeAccess, AccessTokenTTL, i.now())
}

// IssueRefreshToken mints a refresh token for subject, valid for RefreshTokenTTL.
func (i *Issuer) IssueRefreshToken(subject string) (string, error) {
	return i.issue(subject, TypeRefresh, RefreshTokenTTL, i.now())
}

// IssuePair mints an access and a refresh token from a single clock reading.
func (i *Issuer) IssuePair(subject string) (*Pair, error) {
	now := i.now()

	access, err := i.issue(subject, TypeAccess, AccessTokenTTL, now)
	if err != nil {
		return nil, err
	}
	refresh, err := i.issue(subject, TypeRefresh, RefreshTokenTTL, now)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    AccessTokenTTL,
	}, nil
}

// Verify parses tokenString, checking signature, algorithm and expiry.
// It does not check the token type.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (i *Issuer) issue(subject, tokenType string, ttl time.Duration, now time.Time) (string, error) {
	if subject == "" {
		return "", errors.New("subject cannot be empty")
	}

	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}
