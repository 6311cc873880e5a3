package server

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a flow failure. The HTTP adapter maps each kind to a
// status code and an OAuth error code.
type ErrorKind int

const (
	// KindValidation is a missing or malformed request parameter
	KindValidation ErrorKind = iota + 1
	// KindUnsupportedGrant is an unknown grant_type
	KindUnsupportedGrant
	// KindState is an unknown or expired state or code
	KindState
	// KindInvalidGrant is a bad code verifier or refresh token
	KindInvalidGrant
	// KindAccessDenied is a verified identity rejected by the allow policy
	KindAccessDenied
	// KindInvalidToken is a bad bearer token
	KindInvalidToken
	// KindInvalidClient is a wrong client secret
	KindInvalidClient
	// KindUpstream is an identity provider failure
	KindUpstream
	// KindStorage is a backing store failure
	KindStorage
	// KindInternal is any other server-side failure
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindValidation:       "validation",
	KindUnsupportedGrant: "unsupported_grant",
	KindState:            "state",
	KindInvalidGrant:     "invalid_grant",
	KindAccessDenied:     "access_denied",
	KindInvalidToken:     "invalid_token",
	KindInvalidClient:    "invalid_client",
	KindUpstream:         "upstream",
	KindStorage:          "storage",
	KindInternal:         "internal",
}

// String returns the kind name used in logs and span attributes
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsServerError reports whether the kind is a 5xx condition.
func (k ErrorKind) IsServerError() bool {
	return k == KindUpstream || k == KindStorage || k == KindInternal
}

// Client-facing messages.
const (
	MsgMissingParameters    = "Missing required parameters"
	MsgOnlyS256             = "Only S256 code challenge method is supported"
	MsgUnknownClient        = "Unknown client"
	MsgInvalidRedirectURI   = "Invalid redirect_uri"
	MsgMissingCodeOrState   = "Missing code or state"
	MsgInvalidState         = "Invalid or expired state"
	MsgOAuthFlowFailed      = "OAuth flow failed"
	MsgUserNotAuthorized    = "User not authorized"
	MsgInvalidCode          = "Invalid or expired code"
	MsgInvalidCodeVerifier  = "Invalid code verifier"
	MsgMissingRefreshToken  = "Missing refresh token"
	MsgInvalidRefreshToken  = "Invalid refresh token"
	MsgInvalidTokenType     = "Invalid token type"
	MsgUnsupportedGrantType = "Unsupported grant type"
	MsgRedirectURIsRequired = "redirect_uris required"
	MsgInvalidClientCreds   = "Invalid client credentials"
	MsgInternalError        = "Internal server error"
)

// Error is returned by every Server operation. Message is safe to show to
// clients; Err is the internal cause and never leaves the process.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the internal cause
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// upstreamError hides a provider failure behind the generic message.
func upstreamError(cause error) *Error {
	return newError(KindUpstream, MsgOAuthFlowFailed, cause)
}

func storageError(cause error) *Error {
	return newError(KindStorage, MsgInternalError, cause)
}
