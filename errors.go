package oauth

import (
	"fmt"
	"net/http"

	"github.com/giantswarm/mcp-gate/server"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
)

// OAuthError is an error ready to be written as an HTTP response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable message returned in the "error" field
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

type kindMapping struct {
	status int
	code   string
}

var kindMappings = map[server.ErrorKind]kindMapping{
	server.KindValidation:       {http.StatusBadRequest, ErrorCodeInvalidRequest},
	server.KindUnsupportedGrant: {http.StatusBadRequest, ErrorCodeUnsupportedGrantType},
	server.KindState:            {http.StatusBadRequest, ErrorCodeInvalidGrant},
	server.KindInvalidGrant:     {http.StatusBadRequest, ErrorCodeInvalidGrant},
	server.KindAccessDenied:     {http.StatusForbidden, ErrorCodeAccessDenied},
	server.KindInvalidToken:     {http.StatusUnauthorized, ErrorCodeInvalidToken},
	server.KindInvalidClient:    {http.StatusUnauthorized, ErrorCodeInvalidClient},
	server.KindUpstream:         {http.StatusInternalServerError, ErrorCodeServerError},
	server.KindStorage:          {http.StatusInternalServerError, ErrorCodeServerError},
	server.KindInternal:         {http.StatusInternalServerError, ErrorCodeServerError},
}

// ToOAuthError maps a flow error to its HTTP form. Errors that are not
// *server.Error become a generic 500 so internal causes never reach clients.
func ToOAuthError(err error) *OAuthError {
	if oe, ok := err.(*OAuthError); ok {
		return oe
	}
	e, ok := server.AsError(err)
	if !ok {
		return NewOAuthError(ErrorCodeServerError, server.MsgInternalError, http.StatusInternalServerError)
	}
	m, ok := kindMappings[e.Kind]
	if !ok {
		return NewOAuthError(ErrorCodeServerError, server.MsgInternalError, http.StatusInternalServerError)
	}
	return NewOAuthError(m.code, e.Message, m.status)
}
