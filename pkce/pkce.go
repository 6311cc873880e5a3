// Package pkce implements the S256 Proof Key for Code Exchange transform
// (RFC 7636). It is the only method the gate accepts.
package pkce

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// MethodS256 is the only supported code_challenge_method.
const MethodS256 = "S256"

// RFC 7636 verifier length bounds
const (
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

// ErrUnsupportedMethod is returned for any code_challenge_method other than S256.
var ErrUnsupportedMethod = errors.New("only S256 code challenge method is supported")

// ValidateMethod accepts S256 and rejects everything else, including "plain"
// and the empty string.
func ValidateMethod(method string) error {
	if method != MethodS256 {
		return ErrUnsupportedMethod
	}
	return nil
}

// DeriveChallenge returns base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyChallenge recomputes the challenge for verifier and compares it with
// the stored challenge in constant time.
func VerifyChallenge(stored, verifier string) bool {
	computed := DeriveChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

// ValidateVerifier checks RFC 7636 length and charset rules:
// 43-128 characters from [A-Z] / [a-z] / [0-9] / "-" / "." / "_" / "~".
func ValidateVerifier(verifier string) error {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return fmt.Errorf("code_verifier must be %d-%d characters, got %d", MinVerifierLength, MaxVerifierLength, len(verifier))
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreserved(verifier[i]) {
			return fmt.Errorf("code_verifier contains invalid character at position %d", i)
		}
	}
	return nil
}

// NewVerifier returns a fresh random verifier and its S256 challenge.
func NewVerifier() (verifier, challenge string) {
	verifier = oauth2.GenerateVerifier()
	return verifier, DeriveChallenge(verifier)
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
